package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// DatasetStorage implements the DatasetStorage interface for Badger
type DatasetStorage struct {
	db     *BadgerDB
	locks  *keyedMutex
	logger arbor.ILogger
}

// NewDatasetStorage creates a new DatasetStorage instance
func NewDatasetStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DatasetStorage {
	return &DatasetStorage{
		db:     db,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

// SaveDataset inserts or updates a dataset. The upsert is atomic; writers
// to the same key are serialized.
func (s *DatasetStorage) SaveDataset(ctx context.Context, dataset *models.Dataset) error {
	if dataset.Key == "" {
		dataset.Key = models.DatasetKey(dataset.UserID, dataset.Name)
	}

	unlock := s.locks.Lock(dataset.Key)
	defer unlock()

	if err := s.db.Store().Upsert(dataset.Key, dataset); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	return nil
}

// GetDataset retrieves a dataset by user and name
func (s *DatasetStorage) GetDataset(ctx context.Context, userID, name string) (*models.Dataset, error) {
	var dataset models.Dataset
	err := s.db.Store().Get(models.DatasetKey(userID, name), &dataset)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return &dataset, nil
}

// ListDatasets returns all datasets owned by a user, ordered by name
func (s *DatasetStorage) ListDatasets(ctx context.Context, userID string) ([]*models.Dataset, error) {
	var datasets []*models.Dataset
	err := s.db.Store().Find(&datasets, badgerhold.Where("UserID").Eq(userID).SortBy("Name"))
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return datasets, nil
}

// DeleteDataset removes a dataset record
func (s *DatasetStorage) DeleteDataset(ctx context.Context, userID, name string) error {
	key := models.DatasetKey(userID, name)

	unlock := s.locks.Lock(key)
	defer unlock()

	err := s.db.Store().Delete(key, &models.Dataset{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrDatasetNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}

// DeleteDatasetsByUser removes all datasets owned by a user (cascade)
func (s *DatasetStorage) DeleteDatasetsByUser(ctx context.Context, userID string) error {
	err := s.db.Store().DeleteMatching(&models.Dataset{}, badgerhold.Where("UserID").Eq(userID))
	if err != nil {
		return fmt.Errorf("failed to delete datasets for user: %w", err)
	}
	return nil
}
