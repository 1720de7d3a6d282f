package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// UserStorage implements the UserStorage interface for Badger
type UserStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewUserStorage creates a new UserStorage instance
func NewUserStorage(db *BadgerDB, logger arbor.ILogger) interfaces.UserStorage {
	return &UserStorage{
		db:     db,
		logger: logger,
	}
}

// SaveUser inserts or updates a user
func (s *UserStorage) SaveUser(ctx context.Context, user *models.User) error {
	if err := s.db.Store().Upsert(user.ID, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *UserStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.Store().Get(id, &user)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all users ordered by name
func (s *UserStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.db.Store().Find(&users, badgerhold.Where("ID").Ne("").SortBy("Name"))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes a user record. Ownership cascades are handled by the
// user service, not here.
func (s *UserStorage) DeleteUser(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.User{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
