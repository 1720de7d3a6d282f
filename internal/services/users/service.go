package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// Service implements the UserService interface. Deleting a user cascades
// to everything the user owns: datasets, experts, credentials and index
// artifacts.
type Service struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewService creates a new user service
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) interfaces.UserService {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Create registers a new user account
func (s *Service) Create(ctx context.Context, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("user name is required")
	}

	now := time.Now()
	user := &models.User{
		ID:        common.NewUserID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.UserStorage().SaveUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("name", name).Msg("User created")
	return user, nil
}

// Get retrieves a user by ID
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.storage.UserStorage().GetUser(ctx, id)
}

// List returns all users
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.storage.UserStorage().ListUsers(ctx)
}

// Delete removes a user and all owned resources. Index artifacts are
// dropped per dataset before the dataset records go.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.storage.UserStorage().GetUser(ctx, id); err != nil {
		return err
	}

	datasets, err := s.storage.DatasetStorage().ListDatasets(ctx, id)
	if err != nil {
		return err
	}
	for _, dataset := range datasets {
		if err := s.storage.ChunkStorage().DeleteChunks(ctx, dataset.ID); err != nil {
			return err
		}
	}

	if err := s.storage.DatasetStorage().DeleteDatasetsByUser(ctx, id); err != nil {
		return err
	}
	if err := s.storage.ExpertStorage().DeleteExpertsByUser(ctx, id); err != nil {
		return err
	}
	if err := s.storage.CredentialStorage().DeleteCredentialsByUser(ctx, id); err != nil {
		return err
	}
	if err := s.storage.UserStorage().DeleteUser(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", id).Int("datasets", len(datasets)).Msg("User deleted with owned resources")
	return nil
}
