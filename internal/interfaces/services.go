package interfaces

import (
	"context"

	"github.com/peritus-ai/peritus/internal/models"
)

// CredentialResolver resolves authorization material for a provider.
// Resolution is evaluated fresh on every call (no caching layer) so that
// credential mutations take effect immediately.
type CredentialResolver interface {
	// Resolve returns the credential for (user, provider): user scope
	// first, then the system default, else ErrCredentialNotFound. For
	// local-model providers the configured model directory is checked
	// instead.
	Resolve(ctx context.Context, userID, provider string) (*models.Credential, error)

	// Set writes a user-scoped credential through to storage.
	Set(ctx context.Context, cred *models.Credential) error

	// Clear removes a user-scoped credential; subsequent resolutions fall
	// back to the system default, if any.
	Clear(ctx context.Context, userID, provider string) error
}

// DatasetService manages the dataset registry.
type DatasetService interface {
	Create(ctx context.Context, userID, name string, sources []models.SourceDocument, embeddingModel string) (*models.Dataset, error)
	AddDocuments(ctx context.Context, userID, name string, sources []models.SourceDocument) (*models.Dataset, error)
	RemoveDocuments(ctx context.Context, userID, name string, paths []string) (*models.Dataset, error)
	Get(ctx context.Context, userID, name string) (*models.Dataset, error)
	List(ctx context.Context, userID string) ([]*models.Dataset, error)
	Delete(ctx context.Context, userID, name string, force bool) error
}

// ExpertService manages the expert registry.
type ExpertService interface {
	Create(ctx context.Context, expert *models.Expert) (*models.Expert, error)
	Update(ctx context.Context, expert *models.Expert) (*models.Expert, error)
	Get(ctx context.Context, userID, name string) (*models.Expert, error)
	List(ctx context.Context, userID string) ([]*models.Expert, error)
	Delete(ctx context.Context, userID, name string) error
}

// ConsultService runs the retrieval-augmented consult pipeline.
type ConsultService interface {
	Consult(ctx context.Context, req *models.ConsultRequest) (*models.ConsultResponse, error)

	// BuildDataset eagerly (re)builds a dataset index through the same
	// at-most-one-concurrent build coordination used by Consult.
	BuildDataset(ctx context.Context, userID, name string) error
}

// UserService manages accounts and ownership cascades.
type UserService interface {
	Create(ctx context.Context, name string) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// Delete removes the user and all owned datasets, experts,
	// credentials and index artifacts.
	Delete(ctx context.Context, id string) error
}
