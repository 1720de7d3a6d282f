package datasets

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

// Service implements the DatasetService interface. Any mutation of a
// dataset's sources invalidates its index: stored chunks are dropped and
// the status returns to pending.
type Service struct {
	storage  interfaces.StorageManager
	validate *validator.Validate
	defModel string
	logger   arbor.ILogger
}

// NewService creates a new dataset service
func NewService(storage interfaces.StorageManager, config *common.Config, logger arbor.ILogger) interfaces.DatasetService {
	return &Service{
		storage:  storage,
		validate: validator.New(),
		defModel: "gemini:" + config.Providers.Gemini.EmbeddingModel,
		logger:   logger,
	}
}

// Create registers a new dataset for a user
func (s *Service) Create(ctx context.Context, userID, name string, sources []models.SourceDocument, embeddingModel string) (*models.Dataset, error) {
	name = strings.TrimSpace(name)

	if _, err := s.storage.UserStorage().GetUser(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.storage.DatasetStorage().GetDataset(ctx, userID, name); err == nil {
		return nil, fmt.Errorf("dataset %s: %w", name, interfaces.ErrDuplicateName)
	} else if !errors.Is(err, interfaces.ErrDatasetNotFound) {
		return nil, err
	}

	if embeddingModel == "" {
		embeddingModel = s.defModel
	}

	now := time.Now()
	dataset := &models.Dataset{
		ID:             common.NewDatasetID(),
		UserID:         userID,
		Name:           name,
		Key:            models.DatasetKey(userID, name),
		Sources:        assignDocumentIDs(sources),
		EmbeddingModel: embeddingModel,
		Status:         models.DatasetStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.validate.Struct(dataset); err != nil {
		return nil, fmt.Errorf("dataset validation failed: %w", err)
	}

	if err := s.storage.DatasetStorage().SaveDataset(ctx, dataset); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("dataset", name).
		Int("sources", len(dataset.Sources)).
		Msg("Dataset created")

	return dataset, nil
}

// AddDocuments appends source documents to a dataset. Paths already in
// the dataset are skipped. Any addition invalidates the index.
func (s *Service) AddDocuments(ctx context.Context, userID, name string, sources []models.SourceDocument) (*models.Dataset, error) {
	dataset, err := s.storage.DatasetStorage().GetDataset(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	added := 0
	for _, src := range sources {
		if src.Path == "" || dataset.HasSource(src.Path) {
			continue
		}
		if src.ID == "" {
			src.ID = common.NewDocumentID()
		}
		dataset.Sources = append(dataset.Sources, src)
		added++
	}

	if added == 0 {
		return dataset, nil
	}

	if err := s.invalidate(ctx, dataset); err != nil {
		return nil, err
	}

	s.logger.Info().Str("dataset", name).Int("added", added).Msg("Documents added, index invalidated")
	return dataset, nil
}

// RemoveDocuments removes source documents by path. Paths not in the
// dataset are an error; removal of the last document is permitted and
// leaves an empty pending dataset.
func (s *Service) RemoveDocuments(ctx context.Context, userID, name string, paths []string) (*models.Dataset, error) {
	dataset, err := s.storage.DatasetStorage().GetDataset(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if !dataset.HasSource(path) {
			return nil, fmt.Errorf("document %s is not in dataset %s", path, name)
		}
	}

	remove := make(map[string]bool, len(paths))
	for _, path := range paths {
		remove[path] = true
	}

	kept := dataset.Sources[:0]
	for _, src := range dataset.Sources {
		if !remove[src.Path] {
			kept = append(kept, src)
		}
	}
	dataset.Sources = kept

	if err := s.invalidate(ctx, dataset); err != nil {
		return nil, err
	}

	s.logger.Info().Str("dataset", name).Int("removed", len(paths)).Msg("Documents removed, index invalidated")
	return dataset, nil
}

// Get retrieves a dataset by name
func (s *Service) Get(ctx context.Context, userID, name string) (*models.Dataset, error) {
	return s.storage.DatasetStorage().GetDataset(ctx, userID, name)
}

// List returns all datasets owned by a user
func (s *Service) List(ctx context.Context, userID string) ([]*models.Dataset, error) {
	return s.storage.DatasetStorage().ListDatasets(ctx, userID)
}

// Delete removes a dataset and its index artifacts. Without force the
// delete is refused while any expert references the dataset; with force
// the references are left dangling and surface as ErrDatasetUnresolvable
// at consult time.
func (s *Service) Delete(ctx context.Context, userID, name string, force bool) error {
	dataset, err := s.storage.DatasetStorage().GetDataset(ctx, userID, name)
	if err != nil {
		return err
	}

	if !force {
		referencing, err := s.storage.ExpertStorage().ListExpertsReferencing(ctx, userID, name)
		if err != nil {
			return err
		}
		if len(referencing) > 0 {
			return fmt.Errorf("dataset %s is referenced by %d expert(s): %w", name, len(referencing), interfaces.ErrDatasetInUse)
		}
	}

	if err := s.storage.ChunkStorage().DeleteChunks(ctx, dataset.ID); err != nil {
		return err
	}
	if err := s.storage.DatasetStorage().DeleteDataset(ctx, userID, name); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID).Str("dataset", name).Bool("force", force).Msg("Dataset deleted")
	return nil
}

// invalidate drops the index and persists the dataset as pending
func (s *Service) invalidate(ctx context.Context, dataset *models.Dataset) error {
	if err := s.storage.ChunkStorage().DeleteChunks(ctx, dataset.ID); err != nil {
		return err
	}

	dataset.Status = models.DatasetStatusPending
	dataset.LastError = ""
	dataset.IndexedAt = nil
	dataset.UpdatedAt = time.Now()

	return s.storage.DatasetStorage().SaveDataset(ctx, dataset)
}

func assignDocumentIDs(sources []models.SourceDocument) []models.SourceDocument {
	out := make([]models.SourceDocument, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if src.Path == "" || seen[src.Path] {
			continue
		}
		seen[src.Path] = true
		if src.ID == "" {
			src.ID = common.NewDocumentID()
		}
		out = append(out, src)
	}
	return out
}
