package badger

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/models"
)

// CredentialFile represents one provider section in a key file.
// Format:
//
//	[gemini]
//	api_key = "..."
//	base_url = "https://..."   # optional
//	deployment = "..."         # optional, for providers that require one
//	region = "..."             # optional
type CredentialFile struct {
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	Deployment string `toml:"deployment"`
	Region     string `toml:"region"`
}

// SeedSystemCredentials loads system-default credentials once at startup:
// first from the [providers] config section, then from every .toml file
// in the keys directory (key files override config values). This is the
// only writer of system-scope credentials; they are immutable for the
// rest of the run.
func (m *Manager) SeedSystemCredentials(ctx context.Context, config *common.Config) error {
	if !config.Providers.EnableSystemDefaults {
		m.logger.Info().Msg("System default credentials disabled")
		return nil
	}

	loaded := 0

	if config.Providers.Gemini.APIKey != "" {
		if err := m.seedCredential(ctx, "gemini", &CredentialFile{APIKey: config.Providers.Gemini.APIKey}); err == nil {
			loaded++
		}
	}
	if config.Providers.Anthropic.APIKey != "" {
		if err := m.seedCredential(ctx, "anthropic", &CredentialFile{APIKey: config.Providers.Anthropic.APIKey}); err == nil {
			loaded++
		}
	}

	loaded += m.loadCredentialsFromDirectory(ctx, config.Keys.Dir)

	m.logger.Info().Int("providers", loaded).Msg("Seeded system default credentials")
	return nil
}

// loadCredentialsFromDirectory reads every .toml key file in a directory
func (m *Manager) loadCredentialsFromDirectory(ctx context.Context, dirPath string) int {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		m.logger.Debug().Str("dir", dirPath).Msg("Keys directory not readable, skipping")
		return 0
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		content, err := os.ReadFile(filePath)
		if err != nil {
			m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to read key file")
			continue
		}

		// Map of provider name to credential fields
		var providers map[string]CredentialFile
		if err := toml.Unmarshal(content, &providers); err != nil {
			m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse key file")
			continue
		}

		for provider, fields := range providers {
			if fields.APIKey == "" {
				m.logger.Warn().Str("file", entry.Name()).Str("provider", provider).Msg("Skipping provider with empty api_key")
				continue
			}
			if err := m.seedCredential(ctx, provider, &fields); err != nil {
				m.logger.Error().Err(err).Str("provider", provider).Msg("Failed to store system credential")
				continue
			}
			loaded++
		}
	}

	return loaded
}

func (m *Manager) seedCredential(ctx context.Context, provider string, fields *CredentialFile) error {
	cred := &models.Credential{
		Provider:   strings.ToLower(strings.TrimSpace(provider)),
		Scope:      models.ScopeSystem,
		Kind:       models.CredentialKindAPIKey,
		APIKey:     fields.APIKey,
		BaseURL:    fields.BaseURL,
		Deployment: fields.Deployment,
		Region:     fields.Region,
	}

	if err := m.credential.SaveCredential(ctx, cred); err != nil {
		return err
	}

	m.logger.Debug().Str("provider", cred.Provider).Msg("Seeded system credential")
	return nil
}
