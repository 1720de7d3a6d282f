package interfaces

import (
	"context"

	"github.com/peritus-ai/peritus/internal/models"
)

// UserStorage - interface for account persistence
type UserStorage interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// DatasetStorage - interface for dataset registry persistence.
// Writes are atomic per entity; concurrent writers to the same key are
// serialized (last writer wins).
type DatasetStorage interface {
	SaveDataset(ctx context.Context, dataset *models.Dataset) error
	GetDataset(ctx context.Context, userID, name string) (*models.Dataset, error)
	ListDatasets(ctx context.Context, userID string) ([]*models.Dataset, error)
	DeleteDataset(ctx context.Context, userID, name string) error
	DeleteDatasetsByUser(ctx context.Context, userID string) error
}

// ExpertStorage - interface for expert registry persistence
type ExpertStorage interface {
	SaveExpert(ctx context.Context, expert *models.Expert) error
	GetExpert(ctx context.Context, userID, name string) (*models.Expert, error)
	ListExperts(ctx context.Context, userID string) ([]*models.Expert, error)
	ListExpertsReferencing(ctx context.Context, userID, dataset string) ([]*models.Expert, error)
	DeleteExpert(ctx context.Context, userID, name string) error
	DeleteExpertsByUser(ctx context.Context, userID string) error
}

// CredentialStorage - interface for credential persistence. The system
// scope is written only during startup seeding; user scope is mutable.
type CredentialStorage interface {
	SaveCredential(ctx context.Context, cred *models.Credential) error
	GetCredential(ctx context.Context, owner, provider string) (*models.Credential, error)
	ListCredentials(ctx context.Context, owner string) ([]*models.Credential, error)
	DeleteCredential(ctx context.Context, owner, provider string) error
	DeleteCredentialsByUser(ctx context.Context, userID string) error
}

// IndexChunk is one embedded chunk persisted as part of a dataset's index
// artifact. Keyed by dataset ID; dropped wholesale when the dataset's
// documents change.
type IndexChunk struct {
	Key        string    `json:"key"` // "<dataset-id>/<document-id>/<offset>"
	DatasetID  string    `json:"dataset_id"`
	DocumentID string    `json:"document_id"`
	Offset     int       `json:"offset"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
}

// ChunkStorage - interface for index artifact persistence, used by the
// bundled RAG engine.
type ChunkStorage interface {
	SaveChunks(ctx context.Context, chunks []*IndexChunk) error
	GetChunks(ctx context.Context, datasetID string) ([]*IndexChunk, error)
	DeleteChunks(ctx context.Context, datasetID string) error
	CountChunks(ctx context.Context, datasetID string) (int, error)
}

// StorageManager aggregates the storage interfaces over one database.
type StorageManager interface {
	UserStorage() UserStorage
	DatasetStorage() DatasetStorage
	ExpertStorage() ExpertStorage
	CredentialStorage() CredentialStorage
	ChunkStorage() ChunkStorage
	Close() error
}
