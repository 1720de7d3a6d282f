package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
	"github.com/peritus-ai/peritus/internal/services/llm"
)

// embedBatchSize bounds texts per embedding API call
const embedBatchSize = 32

// Engine is the bundled RagEngine: chunks source files, embeds them
// through the provider factory, persists vectors in chunk storage and
// serves similarity search from there. It can be swapped out for an
// external engine behind the same interface.
type Engine struct {
	factory *llm.Factory
	chunks  interfaces.ChunkStorage
	docsDir string
	logger  arbor.ILogger
}

// NewEngine creates the bundled RAG engine
func NewEngine(factory *llm.Factory, chunks interfaces.ChunkStorage, config *common.DocumentsConfig, logger arbor.ILogger) interfaces.RagEngine {
	return &Engine{
		factory: factory,
		chunks:  chunks,
		docsDir: config.Dir,
		logger:  logger,
	}
}

// EmbedDocuments (re)builds the index for a dataset. The old index is
// dropped first so a failed build leaves no partial artifact behind a
// stale-looking count.
func (e *Engine) EmbedDocuments(ctx context.Context, dataset *models.Dataset, cred *models.Credential) error {
	if err := e.chunks.DeleteChunks(ctx, dataset.ID); err != nil {
		return fmt.Errorf("failed to drop old index: %w", err)
	}

	var pending []*interfaces.IndexChunk
	for _, source := range dataset.Sources {
		text, err := e.readSource(source.Path)
		if err != nil {
			return fmt.Errorf("failed to read source %s: %w", source.Path, err)
		}

		for _, span := range splitText(text, defaultChunkSize, 0) {
			pending = append(pending, &interfaces.IndexChunk{
				DatasetID:  dataset.ID,
				DocumentID: source.ID,
				Offset:     span.Offset,
				Text:       span.Text,
			})
		}
	}

	if len(pending) == 0 {
		return fmt.Errorf("dataset %s has no indexable content", dataset.Name)
	}

	for start := 0; start < len(pending); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := e.factory.EmbedTexts(ctx, texts, dataset.EmbeddingModel, cred)
		if err != nil {
			return fmt.Errorf("embedding batch failed: %w", err)
		}
		for i, c := range batch {
			c.Embedding = vectors[i]
		}

		if err := e.chunks.SaveChunks(ctx, batch); err != nil {
			return err
		}
	}

	e.logger.Info().
		Str("dataset", dataset.Name).
		Int("documents", len(dataset.Sources)).
		Int("chunks", len(pending)).
		Msg("Dataset index built")

	return nil
}

// Retrieve runs similarity search against one dataset's stored index
func (e *Engine) Retrieve(ctx context.Context, dataset *models.Dataset, query string, params models.RetrievalParams, cred *models.Credential) ([]interfaces.ScoredChunk, error) {
	stored, err := e.chunks.GetChunks(ctx, dataset.ID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}

	var queryVec []float32
	if params.SearchType != models.SearchTypeTFIDF {
		vectors, err := e.factory.EmbedTexts(ctx, []string{query}, dataset.EmbeddingModel, cred)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		queryVec = vectors[0]
	}

	results := rankChunks(stored, queryVec, query, params)

	e.logger.Debug().
		Str("dataset", dataset.Name).
		Int("candidates", len(stored)).
		Int("results", len(results)).
		Msg("Retrieval complete")

	return results, nil
}

// Generate produces a completion for the assembled prompt messages
func (e *Engine) Generate(ctx context.Context, messages []models.Turn, model string, cred *models.Credential, opts interfaces.GenerateOptions) (string, error) {
	resp, err := e.factory.GenerateContent(ctx, &llm.ContentRequest{
		Messages:          messages,
		Model:             model,
		Temperature:       opts.Temperature,
		MaxTokens:         opts.MaxTokens,
		SystemInstruction: opts.SystemPrompt,
	}, cred)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// readSource resolves a source path against the document directory.
// Absolute paths are used as-is; relative paths may not escape the
// directory.
func (e *Engine) readSource(path string) (string, error) {
	resolved := path
	if !filepath.IsAbs(path) {
		resolved = filepath.Join(e.docsDir, path)
		rel, err := filepath.Rel(e.docsDir, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("source path escapes document directory: %s", path)
		}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
