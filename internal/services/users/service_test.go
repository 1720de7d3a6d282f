package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
	storagebadger "github.com/peritus-ai/peritus/internal/storage/badger"
)

func newTestService(t *testing.T) (interfaces.UserService, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	storage, err := storagebadger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	return NewService(storage, logger), storage
}

func TestCreateAndGetUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, "Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	_, err = svc.Get(ctx, "usr-missing")
	assert.ErrorIs(t, err, interfaces.ErrUserNotFound)

	_, err = svc.Create(ctx, "   ")
	assert.Error(t, err, "blank name rejected")
}

func TestDeleteUserCascades(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, "Bob")
	require.NoError(t, err)

	// Seed everything the user can own
	require.NoError(t, storage.DatasetStorage().SaveDataset(ctx, &models.Dataset{
		ID:             "ds-1",
		UserID:         user.ID,
		Name:           "docs",
		EmbeddingModel: "gemini:gemini-embedding-001",
		Status:         models.DatasetStatusIndexed,
	}))
	require.NoError(t, storage.ChunkStorage().SaveChunks(ctx, []*interfaces.IndexChunk{
		{DatasetID: "ds-1", DocumentID: "doc-1", Offset: 0, Text: "t"},
	}))
	require.NoError(t, storage.ExpertStorage().SaveExpert(ctx, &models.Expert{
		ID:       "ex-1",
		UserID:   user.ID,
		Name:     "helper",
		Datasets: []string{"docs"},
		Model:    "anthropic:claude-sonnet-4-20250514",
	}))
	require.NoError(t, storage.CredentialStorage().SaveCredential(ctx, &models.Credential{
		UserID:   user.ID,
		Provider: "gemini",
		Scope:    models.ScopeUser,
		Kind:     models.CredentialKindAPIKey,
		APIKey:   "key",
	}))

	require.NoError(t, svc.Delete(ctx, user.ID))

	_, err = svc.Get(ctx, user.ID)
	assert.ErrorIs(t, err, interfaces.ErrUserNotFound)

	datasets, err := storage.DatasetStorage().ListDatasets(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, datasets)

	experts, err := storage.ExpertStorage().ListExperts(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, experts)

	_, err = storage.CredentialStorage().GetCredential(ctx, user.ID, "gemini")
	assert.ErrorIs(t, err, interfaces.ErrCredentialNotFound)

	count, err := storage.ChunkStorage().CountChunks(ctx, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "index artifacts removed with the user")
}
