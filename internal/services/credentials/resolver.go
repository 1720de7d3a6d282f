package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
	"github.com/peritus-ai/peritus/internal/services/llm"
)

// Resolver implements the CredentialResolver interface. Every Resolve
// call reads through to storage, so a Set or Clear is visible to the
// next call with no invalidation step.
type Resolver struct {
	storage     interfaces.CredentialStorage
	localModels *LocalModelStore
	config      *common.LlamaConfig
	logger      arbor.ILogger
}

// NewResolver creates a new credential resolver
func NewResolver(storage interfaces.CredentialStorage, localModels *LocalModelStore, config *common.LlamaConfig, logger arbor.ILogger) interfaces.CredentialResolver {
	return &Resolver{
		storage:     storage,
		localModels: localModels,
		config:      config,
		logger:      logger,
	}
}

// Resolve returns the credential for (user, provider). User scope wins
// over the system default; local-model providers resolve against the
// model directory instead of stored API keys.
func (r *Resolver) Resolve(ctx context.Context, userID, provider string) (*models.Credential, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, fmt.Errorf("provider is required: %w", interfaces.ErrCredentialNotFound)
	}

	if llm.IsLocalProvider(provider) {
		return r.resolveLocal(ctx, userID, provider)
	}

	if userID != "" {
		cred, err := r.storage.GetCredential(ctx, userID, provider)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, interfaces.ErrCredentialNotFound) {
			return nil, err
		}
	}

	cred, err := r.storage.GetCredential(ctx, string(models.ScopeSystem), provider)
	if err != nil {
		if errors.Is(err, interfaces.ErrCredentialNotFound) {
			r.logger.Debug().Str("user_id", userID).Str("provider", provider).Msg("No credential resolved")
			return nil, interfaces.ErrCredentialNotFound
		}
		return nil, err
	}
	return cred, nil
}

// resolveLocal builds a local-model credential from the model directory.
// Preference order: the user's stored model choice, the configured chat
// model, then the first model file present.
func (r *Resolver) resolveLocal(ctx context.Context, userID, provider string) (*models.Credential, error) {
	if userID != "" {
		cred, err := r.storage.GetCredential(ctx, userID, provider)
		if err == nil && cred.ModelPath != "" {
			if found, findErr := r.localModels.Find(modelName(cred.ModelPath)); findErr == nil {
				cred.ModelPath = found.Path
				cred.Format = found.Format
				return cred, nil
			}
			r.logger.Warn().Str("user_id", userID).Str("model", cred.ModelPath).Msg("User's local model file is missing, falling back")
		} else if err != nil && !errors.Is(err, interfaces.ErrCredentialNotFound) {
			return nil, err
		}
	}

	var model *ModelInfo
	var err error
	if r.config.ChatModel != "" {
		model, err = r.localModels.Find(r.config.ChatModel)
	} else {
		model, err = r.localModels.First()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCredentialNotFound, err.Error())
	}

	return &models.Credential{
		Key:       models.CredentialKey(string(models.ScopeSystem), provider),
		Provider:  provider,
		Scope:     models.ScopeSystem,
		Kind:      models.CredentialKindLocalModel,
		ModelPath: model.Path,
		Format:    model.Format,
	}, nil
}

// Set writes a user-scoped credential
func (r *Resolver) Set(ctx context.Context, cred *models.Credential) error {
	if cred.UserID == "" {
		return fmt.Errorf("user credential requires a user id")
	}
	cred.Provider = strings.ToLower(strings.TrimSpace(cred.Provider))
	if cred.Provider == "" {
		return fmt.Errorf("user credential requires a provider")
	}
	cred.Scope = models.ScopeUser
	if cred.Kind == "" {
		cred.Kind = models.CredentialKindAPIKey
	}

	if err := r.storage.SaveCredential(ctx, cred); err != nil {
		return err
	}

	r.logger.Info().Str("user_id", cred.UserID).Str("provider", cred.Provider).Msg("User credential set")
	return nil
}

// Clear removes a user-scoped credential
func (r *Resolver) Clear(ctx context.Context, userID, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := r.storage.DeleteCredential(ctx, userID, provider); err != nil {
		return err
	}
	r.logger.Info().Str("user_id", userID).Str("provider", provider).Msg("User credential cleared")
	return nil
}

// modelName reduces a stored model reference to its file name so that
// credentials written with absolute paths keep working after the model
// directory moves.
func modelName(path string) string {
	if idx := strings.LastIndexAny(path, "/\\"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
