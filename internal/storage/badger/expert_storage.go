package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// ExpertStorage implements the ExpertStorage interface for Badger
type ExpertStorage struct {
	db     *BadgerDB
	locks  *keyedMutex
	logger arbor.ILogger
}

// NewExpertStorage creates a new ExpertStorage instance
func NewExpertStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ExpertStorage {
	return &ExpertStorage{
		db:     db,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

// SaveExpert inserts or updates an expert
func (s *ExpertStorage) SaveExpert(ctx context.Context, expert *models.Expert) error {
	if expert.Key == "" {
		expert.Key = models.ExpertKey(expert.UserID, expert.Name)
	}

	unlock := s.locks.Lock(expert.Key)
	defer unlock()

	if err := s.db.Store().Upsert(expert.Key, expert); err != nil {
		return fmt.Errorf("failed to save expert: %w", err)
	}

	return nil
}

// GetExpert retrieves an expert by user and name
func (s *ExpertStorage) GetExpert(ctx context.Context, userID, name string) (*models.Expert, error) {
	var expert models.Expert
	err := s.db.Store().Get(models.ExpertKey(userID, name), &expert)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrExpertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expert: %w", err)
	}
	return &expert, nil
}

// ListExperts returns all experts owned by a user, ordered by name
func (s *ExpertStorage) ListExperts(ctx context.Context, userID string) ([]*models.Expert, error) {
	var experts []*models.Expert
	err := s.db.Store().Find(&experts, badgerhold.Where("UserID").Eq(userID).SortBy("Name"))
	if err != nil {
		return nil, fmt.Errorf("failed to list experts: %w", err)
	}
	return experts, nil
}

// ListExpertsReferencing returns the user's experts that reference the
// given dataset name. Used for delete-time reference checks.
func (s *ExpertStorage) ListExpertsReferencing(ctx context.Context, userID, dataset string) ([]*models.Expert, error) {
	experts, err := s.ListExperts(ctx, userID)
	if err != nil {
		return nil, err
	}

	var referencing []*models.Expert
	for _, expert := range experts {
		if expert.References(dataset) {
			referencing = append(referencing, expert)
		}
	}
	return referencing, nil
}

// DeleteExpert removes an expert record
func (s *ExpertStorage) DeleteExpert(ctx context.Context, userID, name string) error {
	key := models.ExpertKey(userID, name)

	unlock := s.locks.Lock(key)
	defer unlock()

	err := s.db.Store().Delete(key, &models.Expert{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrExpertNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete expert: %w", err)
	}
	return nil
}

// DeleteExpertsByUser removes all experts owned by a user (cascade)
func (s *ExpertStorage) DeleteExpertsByUser(ctx context.Context, userID string) error {
	err := s.db.Store().DeleteMatching(&models.Expert{}, badgerhold.Where("UserID").Eq(userID))
	if err != nil {
		return fmt.Errorf("failed to delete experts for user: %w", err)
	}
	return nil
}
