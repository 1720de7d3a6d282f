package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestDatasetStoragePerUserNames(t *testing.T) {
	db := openTestDB(t)
	logger := arbor.NewLogger()
	storage := NewDatasetStorage(db, logger)
	ctx := context.Background()

	// Same name under two different users must not collide
	dsAlice := &models.Dataset{
		ID:             "ds-1",
		UserID:         "usr-alice",
		Name:           "notes",
		EmbeddingModel: "gemini:gemini-embedding-001",
		Status:         models.DatasetStatusPending,
		CreatedAt:      time.Now(),
	}
	dsBob := &models.Dataset{
		ID:             "ds-2",
		UserID:         "usr-bob",
		Name:           "notes",
		EmbeddingModel: "gemini:gemini-embedding-001",
		Status:         models.DatasetStatusIndexed,
		CreatedAt:      time.Now(),
	}

	if err := storage.SaveDataset(ctx, dsAlice); err != nil {
		t.Fatalf("Failed to save alice's dataset: %v", err)
	}
	if err := storage.SaveDataset(ctx, dsBob); err != nil {
		t.Fatalf("Failed to save bob's dataset: %v", err)
	}

	got, err := storage.GetDataset(ctx, "usr-alice", "notes")
	if err != nil {
		t.Fatalf("Failed to get dataset: %v", err)
	}
	if got.ID != "ds-1" || got.Status != models.DatasetStatusPending {
		t.Errorf("Got wrong dataset: id=%s status=%s", got.ID, got.Status)
	}

	aliceList, err := storage.ListDatasets(ctx, "usr-alice")
	if err != nil {
		t.Fatalf("Failed to list datasets: %v", err)
	}
	if len(aliceList) != 1 {
		t.Errorf("Expected 1 dataset for alice, got %d", len(aliceList))
	}

	if err := storage.DeleteDataset(ctx, "usr-alice", "notes"); err != nil {
		t.Fatalf("Failed to delete dataset: %v", err)
	}
	if _, err := storage.GetDataset(ctx, "usr-alice", "notes"); !errors.Is(err, interfaces.ErrDatasetNotFound) {
		t.Errorf("Expected ErrDatasetNotFound, got %v", err)
	}

	// Bob's dataset is untouched
	if _, err := storage.GetDataset(ctx, "usr-bob", "notes"); err != nil {
		t.Errorf("Bob's dataset should survive alice's delete: %v", err)
	}
}

func TestDatasetStorageDeleteByUser(t *testing.T) {
	db := openTestDB(t)
	logger := arbor.NewLogger()
	storage := NewDatasetStorage(db, logger)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		ds := &models.Dataset{
			ID:             "ds-" + name,
			UserID:         "usr-1",
			Name:           name,
			EmbeddingModel: "gemini:gemini-embedding-001",
			Status:         models.DatasetStatusPending,
		}
		if err := storage.SaveDataset(ctx, ds); err != nil {
			t.Fatalf("Failed to save dataset %s: %v", name, err)
		}
	}

	if err := storage.DeleteDatasetsByUser(ctx, "usr-1"); err != nil {
		t.Fatalf("Failed to cascade delete: %v", err)
	}

	remaining, err := storage.ListDatasets(ctx, "usr-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("Expected no datasets after cascade delete, got %d", len(remaining))
	}
}

func TestExpertStorageReferencing(t *testing.T) {
	db := openTestDB(t)
	logger := arbor.NewLogger()
	storage := NewExpertStorage(db, logger)
	ctx := context.Background()

	ex1 := &models.Expert{
		ID:       "ex-1",
		UserID:   "usr-1",
		Name:     "support",
		Datasets: []string{"faq", "manuals"},
		Model:    "anthropic:claude-sonnet-4-20250514",
	}
	ex2 := &models.Expert{
		ID:       "ex-2",
		UserID:   "usr-1",
		Name:     "sales",
		Datasets: []string{"pricing"},
		Model:    "gemini:gemini-3-flash-preview",
	}
	for _, ex := range []*models.Expert{ex1, ex2} {
		if err := storage.SaveExpert(ctx, ex); err != nil {
			t.Fatalf("Failed to save expert: %v", err)
		}
	}

	referencing, err := storage.ListExpertsReferencing(ctx, "usr-1", "faq")
	if err != nil {
		t.Fatalf("Failed to list referencing experts: %v", err)
	}
	if len(referencing) != 1 || referencing[0].Name != "support" {
		t.Errorf("Expected [support], got %d experts", len(referencing))
	}

	none, err := storage.ListExpertsReferencing(ctx, "usr-1", "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no experts referencing unknown dataset, got %d", len(none))
	}
}

func TestCredentialStorageScopes(t *testing.T) {
	db := openTestDB(t)
	logger := arbor.NewLogger()
	storage := NewCredentialStorage(db, logger)
	ctx := context.Background()

	system := &models.Credential{
		Provider: "gemini",
		Scope:    models.ScopeSystem,
		Kind:     models.CredentialKindAPIKey,
		APIKey:   "system-key",
	}
	user := &models.Credential{
		UserID:   "usr-1",
		Provider: "gemini",
		Scope:    models.ScopeUser,
		Kind:     models.CredentialKindAPIKey,
		APIKey:   "user-key",
	}

	if err := storage.SaveCredential(ctx, system); err != nil {
		t.Fatalf("Failed to save system credential: %v", err)
	}
	if err := storage.SaveCredential(ctx, user); err != nil {
		t.Fatalf("Failed to save user credential: %v", err)
	}

	got, err := storage.GetCredential(ctx, "usr-1", "gemini")
	if err != nil {
		t.Fatalf("Failed to get user credential: %v", err)
	}
	if got.APIKey != "user-key" {
		t.Errorf("Expected user-key, got %s", got.APIKey)
	}

	got, err = storage.GetCredential(ctx, "system", "gemini")
	if err != nil {
		t.Fatalf("Failed to get system credential: %v", err)
	}
	if got.APIKey != "system-key" {
		t.Errorf("Expected system-key, got %s", got.APIKey)
	}

	// Updating preserves CreatedAt
	created := got.CreatedAt
	time.Sleep(10 * time.Millisecond)
	system.APIKey = "rotated"
	if err := storage.SaveCredential(ctx, system); err != nil {
		t.Fatal(err)
	}
	got, err = storage.GetCredential(ctx, "system", "gemini")
	if err != nil {
		t.Fatal(err)
	}
	if got.APIKey != "rotated" {
		t.Errorf("Expected rotated key, got %s", got.APIKey)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v -> %v", created, got.CreatedAt)
	}

	if err := storage.DeleteCredential(ctx, "usr-1", "gemini"); err != nil {
		t.Fatalf("Failed to delete user credential: %v", err)
	}
	if _, err := storage.GetCredential(ctx, "usr-1", "gemini"); !errors.Is(err, interfaces.ErrCredentialNotFound) {
		t.Errorf("Expected ErrCredentialNotFound, got %v", err)
	}
}

func TestChunkStorageLifecycle(t *testing.T) {
	db := openTestDB(t)
	logger := arbor.NewLogger()
	storage := NewChunkStorage(db, logger)
	ctx := context.Background()

	chunks := []*interfaces.IndexChunk{
		{DatasetID: "ds-1", DocumentID: "doc-1", Offset: 0, Text: "alpha", Embedding: []float32{1, 0}},
		{DatasetID: "ds-1", DocumentID: "doc-1", Offset: 1000, Text: "beta", Embedding: []float32{0, 1}},
		{DatasetID: "ds-2", DocumentID: "doc-2", Offset: 0, Text: "gamma", Embedding: []float32{1, 1}},
	}
	if err := storage.SaveChunks(ctx, chunks); err != nil {
		t.Fatalf("Failed to save chunks: %v", err)
	}

	count, err := storage.CountChunks(ctx, "ds-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 chunks for ds-1, got %d", count)
	}

	got, err := storage.GetChunks(ctx, "ds-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Text != "alpha" {
		t.Errorf("Unexpected chunks: %+v", got)
	}

	if err := storage.DeleteChunks(ctx, "ds-1"); err != nil {
		t.Fatalf("Failed to delete chunks: %v", err)
	}
	count, err = storage.CountChunks(ctx, "ds-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 chunks after delete, got %d", count)
	}

	// ds-2 untouched
	count, err = storage.CountChunks(ctx, "ds-2")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 chunk for ds-2, got %d", count)
	}
}
