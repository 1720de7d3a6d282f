package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peritus-ai/peritus/internal/interfaces"
)

// ChunkStorage implements the ChunkStorage interface for Badger. Index
// artifacts are keyed by dataset ID and dropped wholesale when a
// dataset's documents change.
type ChunkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChunkStorage creates a new ChunkStorage instance
func NewChunkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ChunkStorage {
	return &ChunkStorage{
		db:     db,
		logger: logger,
	}
}

// SaveChunks persists a batch of embedded chunks
func (s *ChunkStorage) SaveChunks(ctx context.Context, chunks []*interfaces.IndexChunk) error {
	for _, chunk := range chunks {
		if chunk.Key == "" {
			chunk.Key = fmt.Sprintf("%s/%s/%d", chunk.DatasetID, chunk.DocumentID, chunk.Offset)
		}
		if err := s.db.Store().Upsert(chunk.Key, chunk); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.Key, err)
		}
	}

	s.logger.Debug().Int("count", len(chunks)).Msg("Saved index chunks")
	return nil
}

// GetChunks returns all chunks for a dataset in document/offset order
func (s *ChunkStorage) GetChunks(ctx context.Context, datasetID string) ([]*interfaces.IndexChunk, error) {
	var chunks []*interfaces.IndexChunk
	err := s.db.Store().Find(&chunks, badgerhold.Where("DatasetID").Eq(datasetID).SortBy("Key"))
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	return chunks, nil
}

// DeleteChunks removes all chunks for a dataset (index invalidation)
func (s *ChunkStorage) DeleteChunks(ctx context.Context, datasetID string) error {
	err := s.db.Store().DeleteMatching(&interfaces.IndexChunk{}, badgerhold.Where("DatasetID").Eq(datasetID))
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// CountChunks returns the number of stored chunks for a dataset
func (s *ChunkStorage) CountChunks(ctx context.Context, datasetID string) (int, error) {
	count, err := s.db.Store().Count(&interfaces.IndexChunk{}, badgerhold.Where("DatasetID").Eq(datasetID))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}
