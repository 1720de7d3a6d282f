package consult

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// buildResult is one in-flight index build. Waiters block on done; err
// is valid after done closes.
type buildResult struct {
	done chan struct{}
	err  error
}

// buildRegistry coordinates index builds so that at most one build per
// dataset runs at a time. Concurrent consults needing the same dataset
// share the single build and all observe its outcome.
type buildRegistry struct {
	mu       sync.Mutex
	inflight map[string]*buildResult
}

func newBuildRegistry() *buildRegistry {
	return &buildRegistry{inflight: make(map[string]*buildResult)}
}

// begin returns the in-flight build for a key, creating one when none
// exists. The second return is true for the caller that must run the
// build and complete it.
func (r *buildRegistry) begin(key string) (*buildResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.inflight[key]; ok {
		return existing, false
	}
	result := &buildResult{done: make(chan struct{})}
	r.inflight[key] = result
	return result, true
}

// complete records the outcome and releases waiters
func (r *buildRegistry) complete(key string, result *buildResult, err error) {
	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()

	result.err = err
	close(result.done)
}

// ensureIndexed makes sure a dataset's index is current, building it if
// needed. When another consult is already building the same dataset this
// call joins that build instead of starting a second one.
func (s *Service) ensureIndexed(ctx context.Context, dataset *models.Dataset, cred *models.Credential) error {
	if dataset.Status == models.DatasetStatusIndexed {
		return nil
	}
	return s.runBuild(ctx, dataset, cred, false)
}

// runBuild builds a dataset index through the registry. With rebuild set
// the index is rebuilt even when it is already current.
func (s *Service) runBuild(ctx context.Context, dataset *models.Dataset, cred *models.Credential, rebuild bool) error {
	result, owner := s.builds.begin(dataset.Key)

	if owner {
		// The build itself runs on a detached context so a caller
		// disconnecting mid-build does not fail it for everyone waiting.
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.indexTimeout)
		err := s.executeBuild(buildCtx, dataset, cred, rebuild)
		cancel()
		s.builds.complete(dataset.Key, result, err)
		return err
	}

	s.logger.Debug().Str("dataset", dataset.Name).Msg("Joining in-flight index build")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-result.done:
		return result.err
	}
}

// executeBuild runs one index build and records the outcome on the
// dataset record.
func (s *Service) executeBuild(ctx context.Context, dataset *models.Dataset, cred *models.Credential, rebuild bool) error {
	// Re-fetch so the build sees sources added after the caller's read
	fresh, err := s.storage.DatasetStorage().GetDataset(ctx, dataset.UserID, dataset.Name)
	if err != nil {
		return err
	}

	// A caller that read the dataset as stale may become owner only
	// after another build already finished and left the registry. The
	// fresh read catches that: the index is current, nothing to do.
	if !rebuild && fresh.Status == models.DatasetStatusIndexed {
		*dataset = *fresh
		return nil
	}

	s.logger.Info().
		Str("dataset", fresh.Name).
		Int("sources", len(fresh.Sources)).
		Str("embedding_model", fresh.EmbeddingModel).
		Msg("Building dataset index")

	buildErr := s.engine.EmbedDocuments(ctx, fresh, cred)

	now := time.Now()
	fresh.UpdatedAt = now
	if buildErr != nil {
		fresh.Status = models.DatasetStatusFailed
		fresh.LastError = buildErr.Error()
		fresh.IndexedAt = nil
	} else {
		fresh.Status = models.DatasetStatusIndexed
		fresh.LastError = ""
		fresh.IndexedAt = &now
	}

	if saveErr := s.storage.DatasetStorage().SaveDataset(ctx, fresh); saveErr != nil {
		if buildErr != nil {
			return fmt.Errorf("%w: %s", interfaces.ErrIndexBuildFailed, buildErr.Error())
		}
		return saveErr
	}

	if buildErr != nil {
		s.logger.Warn().Err(buildErr).Str("dataset", fresh.Name).Msg("Index build failed")
		return fmt.Errorf("%w: %s", interfaces.ErrIndexBuildFailed, buildErr.Error())
	}

	// Propagate the fresh state to the caller's copy
	*dataset = *fresh
	return nil
}

// BuildDataset eagerly (re)builds a dataset index through the same
// coordination used by Consult.
func (s *Service) BuildDataset(ctx context.Context, userID, name string) error {
	dataset, err := s.storage.DatasetStorage().GetDataset(ctx, userID, name)
	if err != nil {
		return err
	}

	provider, _ := llmSplit(dataset.EmbeddingModel)
	cred, err := s.credentials.Resolve(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, interfaces.ErrCredentialNotFound) {
			return fmt.Errorf("provider %s: %w", provider, interfaces.ErrCredentialMissing)
		}
		return err
	}

	return s.runBuild(ctx, dataset, cred, true)
}
