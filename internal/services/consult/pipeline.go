package consult

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
	"github.com/peritus-ai/peritus/internal/services/llm"
)

// Service implements the ConsultService interface: the full
// retrieval-augmented pipeline from expert lookup through generation.
type Service struct {
	storage     interfaces.StorageManager
	credentials interfaces.CredentialResolver
	engine      interfaces.RagEngine
	builds      *buildRegistry
	retry       *llm.RetryConfig

	indexTimeout    time.Duration
	generateTimeout time.Duration

	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates a new consult service
func NewService(
	storage interfaces.StorageManager,
	credentials interfaces.CredentialResolver,
	engine interfaces.RagEngine,
	config *common.Config,
	logger arbor.ILogger,
) interfaces.ConsultService {
	return &Service{
		storage:         storage,
		credentials:     credentials,
		engine:          engine,
		builds:          newBuildRegistry(),
		retry:           llm.NewRetryConfig(&config.Retry),
		indexTimeout:    common.ParseDurationOr(config.Consult.IndexTimeout, 5*time.Minute),
		generateTimeout: common.ParseDurationOr(config.Consult.GenerateTimeout, 2*time.Minute),
		validate:        validator.New(),
		logger:          logger,
	}
}

// Consult answers one question against a named expert. The pipeline:
// resolve expert and datasets, resolve credentials, ensure every dataset
// is indexed, retrieve from each, merge, assemble the prompt and
// generate. Credentials are resolved before any index work so a missing
// key fails the request without side effects.
func (s *Service) Consult(ctx context.Context, req *models.ConsultRequest) (*models.ConsultResponse, error) {
	started := time.Now()

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("consult request validation failed: %w", err)
	}

	expert, err := s.storage.ExpertStorage().GetExpert(ctx, req.UserID, req.Expert)
	if err != nil {
		return nil, err
	}

	// Expert references are weak; a force-deleted dataset surfaces here
	datasets := make([]*models.Dataset, 0, len(expert.Datasets))
	for _, name := range expert.Datasets {
		dataset, err := s.storage.DatasetStorage().GetDataset(ctx, req.UserID, name)
		if err != nil {
			if errors.Is(err, interfaces.ErrDatasetNotFound) {
				return nil, fmt.Errorf("expert %s references dataset %s: %w", expert.Name, name, interfaces.ErrDatasetUnresolvable)
			}
			return nil, err
		}
		datasets = append(datasets, dataset)
	}

	genProvider, genModel := llmSplit(expert.Model)
	genCred, err := s.resolveCred(ctx, req.UserID, genProvider)
	if err != nil {
		return nil, err
	}

	embedCreds := make(map[string]*models.Credential)
	for _, dataset := range datasets {
		provider, _ := llmSplit(dataset.EmbeddingModel)
		if _, ok := embedCreds[provider]; ok {
			continue
		}
		cred, err := s.resolveCred(ctx, req.UserID, provider)
		if err != nil {
			return nil, err
		}
		embedCreds[provider] = cred
	}

	perDataset := make([][]interfaces.ScoredChunk, len(datasets))
	for i, dataset := range datasets {
		provider, _ := llmSplit(dataset.EmbeddingModel)
		cred := embedCreds[provider]

		if err := s.ensureIndexed(ctx, dataset, cred); err != nil {
			return nil, err
		}

		chunks, err := s.engine.Retrieve(ctx, dataset, req.Question, expert.Retrieval, cred)
		if err != nil {
			return nil, fmt.Errorf("retrieval from dataset %s failed: %w", dataset.Name, err)
		}
		perDataset[i] = chunks
	}

	merged := mergeChunks(expert.Datasets, perDataset, expert.Retrieval.TopK)
	messages := buildMessages(expert, req, merged)

	answer, err := s.generateWithRetry(ctx, messages, expert.Model, genCred, interfaces.GenerateOptions{
		SystemPrompt: expert.SystemPrompt,
		MaxTokens:    expert.Retrieval.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	latency := time.Since(started)
	s.logger.Info().
		Str("user_id", req.UserID).
		Str("expert", expert.Name).
		Int("chunks", len(merged)).
		Str("latency", latency.String()).
		Msg("Consult complete")

	return &models.ConsultResponse{
		Answer:   answer,
		Chunks:   merged,
		Provider: genProvider,
		Model:    genModel,
		Latency:  latency,
	}, nil
}

// generateWithRetry runs generation with a bounded retry budget. Only
// transient failures (rate limits, timeouts) are retried; the budget
// counts every attempt including the first.
func (s *Service) generateWithRetry(ctx context.Context, messages []models.Turn, model string, cred *models.Credential, opts interfaces.GenerateOptions) (string, error) {
	var lastErr error

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			s.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt+1).
				Int("max_attempts", s.retry.MaxAttempts).
				Msg("Retrying generation")
			if err := s.retry.Wait(ctx, attempt-1, lastErr); err != nil {
				return "", fmt.Errorf("%w: %s", interfaces.ErrGenerationFailed, err.Error())
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if s.generateTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.generateTimeout)
		}
		answer, err := s.engine.Generate(attemptCtx, messages, model, cred, opts)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return answer, nil
		}
		lastErr = err

		if !llm.IsTransientError(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("%w: %s", interfaces.ErrGenerationFailed, lastErr.Error())
}

// resolveCred resolves a provider credential, mapping the not-found case
// to the pipeline's missing-credential error.
func (s *Service) resolveCred(ctx context.Context, userID, provider string) (*models.Credential, error) {
	cred, err := s.credentials.Resolve(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, interfaces.ErrCredentialNotFound) {
			return nil, fmt.Errorf("provider %s: %w", provider, interfaces.ErrCredentialMissing)
		}
		return nil, err
	}
	return cred, nil
}

// llmSplit splits a "provider:model" reference, returning the provider
// as a plain string for credential resolution.
func llmSplit(ref string) (string, string) {
	provider, model := llm.SplitModelRef(ref)
	return string(provider), model
}
