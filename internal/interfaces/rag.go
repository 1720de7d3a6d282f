package interfaces

import (
	"context"

	"github.com/peritus-ai/peritus/internal/models"
)

// ScoredChunk is one retrieval hit returned by the RAG engine.
type ScoredChunk struct {
	DocumentID string  `json:"document_id"`
	Offset     int     `json:"offset"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// GenerateOptions carries per-call generation settings.
type GenerateOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

// RagEngine is the external retrieval/generation collaborator. The core
// treats chunking strategy, distance metric and token handling as opaque;
// it depends only on these three capabilities.
type RagEngine interface {
	// EmbedDocuments (re)builds the index for a dataset from its sources
	// using the given embedding model and credential.
	EmbedDocuments(ctx context.Context, dataset *models.Dataset, cred *models.Credential) error

	// Retrieve runs similarity search against one dataset's index.
	// Results are ordered by descending score.
	Retrieve(ctx context.Context, dataset *models.Dataset, query string, params models.RetrievalParams, cred *models.Credential) ([]ScoredChunk, error)

	// Generate produces a completion for the assembled prompt messages.
	Generate(ctx context.Context, messages []models.Turn, model string, cred *models.Credential, opts GenerateOptions) (string, error)
}
