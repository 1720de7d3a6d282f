package datasets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
	storagebadger "github.com/peritus-ai/peritus/internal/storage/badger"
)

func newTestService(t *testing.T) (interfaces.DatasetService, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	storage, err := storagebadger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	require.NoError(t, storage.UserStorage().SaveUser(context.Background(), &models.User{
		ID:   "usr-1",
		Name: "Test User",
	}))

	return NewService(storage, common.NewDefaultConfig(), logger), storage
}

func TestCreateDataset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sources := []models.SourceDocument{{Path: "guide.txt"}, {Path: "faq.txt"}}
	ds, err := svc.Create(ctx, "usr-1", "docs", sources, "")
	require.NoError(t, err)

	assert.Equal(t, models.DatasetStatusPending, ds.Status)
	assert.Equal(t, "gemini:gemini-embedding-001", ds.EmbeddingModel, "embedding model defaults from config")
	require.Len(t, ds.Sources, 2)
	assert.NotEmpty(t, ds.Sources[0].ID, "source documents get IDs assigned")

	// Duplicate name for the same user is rejected
	_, err = svc.Create(ctx, "usr-1", "docs", nil, "")
	assert.ErrorIs(t, err, interfaces.ErrDuplicateName)

	// Unknown owner is rejected
	_, err = svc.Create(ctx, "usr-nobody", "other", nil, "")
	assert.ErrorIs(t, err, interfaces.ErrUserNotFound)
}

func TestAddRemoveDocumentsInvalidateIndex(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	ds, err := svc.Create(ctx, "usr-1", "docs", []models.SourceDocument{{Path: "a.txt"}}, "gemini:gemini-embedding-001")
	require.NoError(t, err)

	// Simulate a completed index build
	ds.Status = models.DatasetStatusIndexed
	require.NoError(t, storage.DatasetStorage().SaveDataset(ctx, ds))
	require.NoError(t, storage.ChunkStorage().SaveChunks(ctx, []*interfaces.IndexChunk{
		{DatasetID: ds.ID, DocumentID: "doc-1", Offset: 0, Text: "indexed text"},
	}))

	// Adding a document returns the dataset to pending and drops the index
	updated, err := svc.AddDocuments(ctx, "usr-1", "docs", []models.SourceDocument{{Path: "b.txt"}})
	require.NoError(t, err)
	assert.Equal(t, models.DatasetStatusPending, updated.Status)
	assert.Len(t, updated.Sources, 2)

	count, err := storage.ChunkStorage().CountChunks(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "index artifacts dropped on mutation")

	// Adding an already-present path is a no-op
	same, err := svc.AddDocuments(ctx, "usr-1", "docs", []models.SourceDocument{{Path: "b.txt"}})
	require.NoError(t, err)
	assert.Len(t, same.Sources, 2)

	// Removing works by path; unknown paths error
	updated, err = svc.RemoveDocuments(ctx, "usr-1", "docs", []string{"a.txt"})
	require.NoError(t, err)
	assert.Len(t, updated.Sources, 1)
	assert.Equal(t, models.DatasetStatusPending, updated.Status)

	_, err = svc.RemoveDocuments(ctx, "usr-1", "docs", []string{"missing.txt"})
	assert.Error(t, err)

	// Removing the last document leaves an empty pending dataset
	updated, err = svc.RemoveDocuments(ctx, "usr-1", "docs", []string{"b.txt"})
	require.NoError(t, err)
	assert.Empty(t, updated.Sources)
	assert.Equal(t, models.DatasetStatusPending, updated.Status)
}

// failingDatasetStorage simulates a broken backing store
type failingDatasetStorage struct {
	interfaces.DatasetStorage
	getErr error
}

func (f *failingDatasetStorage) GetDataset(ctx context.Context, userID, name string) (*models.Dataset, error) {
	return nil, f.getErr
}

type managerWithDatasets struct {
	interfaces.StorageManager
	datasets interfaces.DatasetStorage
}

func (m *managerWithDatasets) DatasetStorage() interfaces.DatasetStorage { return m.datasets }

func TestCreateDatasetSurfacesStorageErrors(t *testing.T) {
	_, storage := newTestService(t)

	storeErr := errors.New("value log truncated")
	broken := &managerWithDatasets{
		StorageManager: storage,
		datasets:       &failingDatasetStorage{getErr: storeErr},
	}
	svc := NewService(broken, common.NewDefaultConfig(), arbor.NewLogger())

	// A storage failure during the duplicate check must surface, not be
	// read as "name is free"
	_, err := svc.Create(context.Background(), "usr-1", "docs", nil, "")
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, interfaces.ErrDuplicateName)
}

func TestDeleteDatasetForceSemantics(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "usr-1", "docs", []models.SourceDocument{{Path: "a.txt"}}, "gemini:gemini-embedding-001")
	require.NoError(t, err)

	// An expert referencing the dataset blocks a plain delete
	require.NoError(t, storage.ExpertStorage().SaveExpert(ctx, &models.Expert{
		ID:       "ex-1",
		UserID:   "usr-1",
		Name:     "helper",
		Datasets: []string{"docs"},
		Model:    "anthropic:claude-sonnet-4-20250514",
	}))

	err = svc.Delete(ctx, "usr-1", "docs", false)
	assert.ErrorIs(t, err, interfaces.ErrDatasetInUse)

	// Force delete goes through and leaves the reference dangling
	require.NoError(t, svc.Delete(ctx, "usr-1", "docs", true))
	_, err = svc.Get(ctx, "usr-1", "docs")
	assert.ErrorIs(t, err, interfaces.ErrDatasetNotFound)

	expert, err := storage.ExpertStorage().GetExpert(ctx, "usr-1", "helper")
	require.NoError(t, err)
	assert.Contains(t, expert.Datasets, "docs", "expert keeps its dangling reference")
}
