package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/models"
)

func TestSeedSystemCredentials(t *testing.T) {
	logger := arbor.NewLogger()
	manager, err := NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Close()

	keysDir := t.TempDir()
	keyFile := filepath.Join(keysDir, "providers.toml")
	if err := os.WriteFile(keyFile, []byte(`
[gemini]
api_key = "file-gemini-key"

[anthropic]
api_key = "file-anthropic-key"
base_url = "https://proxy.internal"

[broken]
api_key = ""
`), 0644); err != nil {
		t.Fatal(err)
	}

	config := common.NewDefaultConfig()
	config.Keys.Dir = keysDir
	config.Providers.Gemini.APIKey = "config-gemini-key"

	m := manager.(*Manager)
	if err := m.SeedSystemCredentials(context.Background(), config); err != nil {
		t.Fatalf("Failed to seed credentials: %v", err)
	}

	ctx := context.Background()

	// Key file overrides the config value for the same provider
	cred, err := manager.CredentialStorage().GetCredential(ctx, "system", "gemini")
	if err != nil {
		t.Fatalf("Failed to get gemini credential: %v", err)
	}
	if cred.APIKey != "file-gemini-key" {
		t.Errorf("Expected key file to win, got %s", cred.APIKey)
	}
	if cred.Scope != models.ScopeSystem {
		t.Errorf("Expected system scope, got %s", cred.Scope)
	}

	cred, err = manager.CredentialStorage().GetCredential(ctx, "system", "anthropic")
	if err != nil {
		t.Fatalf("Failed to get anthropic credential: %v", err)
	}
	if cred.BaseURL != "https://proxy.internal" {
		t.Errorf("Expected base_url from key file, got %s", cred.BaseURL)
	}

	// Providers with empty api_key are skipped
	if _, err := manager.CredentialStorage().GetCredential(ctx, "system", "broken"); err == nil {
		t.Error("Expected empty-key provider to be skipped")
	}
}

func TestSeedSystemCredentialsDisabled(t *testing.T) {
	logger := arbor.NewLogger()
	manager, err := NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer manager.Close()

	config := common.NewDefaultConfig()
	config.Providers.EnableSystemDefaults = false
	config.Providers.Gemini.APIKey = "should-not-load"

	m := manager.(*Manager)
	if err := m.SeedSystemCredentials(context.Background(), config); err != nil {
		t.Fatal(err)
	}

	if _, err := manager.CredentialStorage().GetCredential(context.Background(), "system", "gemini"); err == nil {
		t.Error("Expected no system credentials when defaults are disabled")
	}
}
