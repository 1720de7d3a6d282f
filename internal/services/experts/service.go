package experts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// Service implements the ExpertService interface. Dataset references are
// validated at write time; a reference that later goes dangling (force
// delete of the dataset) is caught at consult time instead.
type Service struct {
	storage  interfaces.StorageManager
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates a new expert service
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) interfaces.ExpertService {
	return &Service{
		storage:  storage,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create registers a new expert for a user
func (s *Service) Create(ctx context.Context, expert *models.Expert) (*models.Expert, error) {
	expert.Name = strings.TrimSpace(expert.Name)

	if _, err := s.storage.UserStorage().GetUser(ctx, expert.UserID); err != nil {
		return nil, err
	}

	if _, err := s.storage.ExpertStorage().GetExpert(ctx, expert.UserID, expert.Name); err == nil {
		return nil, fmt.Errorf("expert %s: %w", expert.Name, interfaces.ErrDuplicateName)
	} else if !errors.Is(err, interfaces.ErrExpertNotFound) {
		return nil, err
	}

	now := time.Now()
	expert.ID = common.NewExpertID()
	expert.Key = models.ExpertKey(expert.UserID, expert.Name)
	expert.CreatedAt = now
	expert.UpdatedAt = now

	if err := s.prepare(ctx, expert); err != nil {
		return nil, err
	}

	if err := s.storage.ExpertStorage().SaveExpert(ctx, expert); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", expert.UserID).
		Str("expert", expert.Name).
		Str("model", expert.Model).
		Str("datasets", strings.Join(expert.Datasets, ",")).
		Msg("Expert created")

	return expert, nil
}

// Update replaces an existing expert's configuration. Name and owner are
// immutable; everything else is taken from the incoming value.
func (s *Service) Update(ctx context.Context, expert *models.Expert) (*models.Expert, error) {
	existing, err := s.storage.ExpertStorage().GetExpert(ctx, expert.UserID, expert.Name)
	if err != nil {
		return nil, err
	}

	expert.ID = existing.ID
	expert.Key = existing.Key
	expert.CreatedAt = existing.CreatedAt
	expert.UpdatedAt = time.Now()

	if err := s.prepare(ctx, expert); err != nil {
		return nil, err
	}

	if err := s.storage.ExpertStorage().SaveExpert(ctx, expert); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", expert.UserID).Str("expert", expert.Name).Msg("Expert updated")
	return expert, nil
}

// Get retrieves an expert by name
func (s *Service) Get(ctx context.Context, userID, name string) (*models.Expert, error) {
	return s.storage.ExpertStorage().GetExpert(ctx, userID, name)
}

// List returns all experts owned by a user
func (s *Service) List(ctx context.Context, userID string) ([]*models.Expert, error) {
	return s.storage.ExpertStorage().ListExperts(ctx, userID)
}

// Delete removes an expert. Datasets it referenced are untouched.
func (s *Service) Delete(ctx context.Context, userID, name string) error {
	if err := s.storage.ExpertStorage().DeleteExpert(ctx, userID, name); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("expert", name).Msg("Expert deleted")
	return nil
}

// prepare applies retrieval defaults, validates the struct and checks
// every referenced dataset exists for the owner.
func (s *Service) prepare(ctx context.Context, expert *models.Expert) error {
	if expert.Retrieval == (models.RetrievalParams{}) {
		expert.Retrieval = models.DefaultRetrievalParams()
	}
	if expert.Retrieval.TopK == 0 {
		expert.Retrieval.TopK = models.DefaultRetrievalParams().TopK
	}
	if expert.Retrieval.SearchType == "" {
		expert.Retrieval.SearchType = models.SearchTypeMerge
	}

	if err := s.validate.Struct(expert); err != nil {
		return fmt.Errorf("expert validation failed: %w", err)
	}

	seen := make(map[string]bool, len(expert.Datasets))
	for _, name := range expert.Datasets {
		if seen[name] {
			return fmt.Errorf("dataset %s is listed twice", name)
		}
		seen[name] = true

		if _, err := s.storage.DatasetStorage().GetDataset(ctx, expert.UserID, name); err != nil {
			if errors.Is(err, interfaces.ErrDatasetNotFound) {
				return fmt.Errorf("dataset %s: %w", name, interfaces.ErrDatasetNotFound)
			}
			return err
		}
	}

	return nil
}
