package models

import "time"

// CredentialScope identifies who owns a credential record.
type CredentialScope string

const (
	// ScopeSystem is the process-wide default, loaded once at startup and
	// immutable for the lifetime of the run.
	ScopeSystem CredentialScope = "system"
	// ScopeUser overrides the system default for a single user.
	ScopeUser CredentialScope = "user"
)

// CredentialKind distinguishes hosted API keys from local model files.
type CredentialKind string

const (
	CredentialKindAPIKey     CredentialKind = "api_key"
	CredentialKindLocalModel CredentialKind = "local_model"
)

// Credential is resolved authorization material for a single provider.
// At most one credential exists per (user, provider) pair; a user-scoped
// credential shadows the system default for that provider.
type Credential struct {
	// Key is "<scope-owner>/<provider>", e.g. "usr_123/gemini" or "system/anthropic"
	Key      string          `json:"key"`
	UserID   string          `json:"user_id"` // empty for system scope
	Provider string          `json:"provider" validate:"required"`
	Scope    CredentialScope `json:"scope" validate:"required,oneof=system user"`
	Kind     CredentialKind  `json:"kind" validate:"required,oneof=api_key local_model"`

	// Hosted provider fields
	APIKey     string `json:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`    // optional custom endpoint
	Deployment string `json:"deployment,omitempty"`  // for providers that require a deployment name
	Region     string `json:"region,omitempty"`      // for providers that require a region

	// Local model fields
	ModelPath string `json:"model_path,omitempty"` // filesystem path to the model file
	Format    string `json:"format,omitempty"`     // model format tag, e.g. "gguf"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CredentialKey builds the storage key for a scope owner and provider.
func CredentialKey(owner, provider string) string {
	return owner + "/" + provider
}
