package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peritus-ai/peritus/internal/common"
)

func TestSplitModelRef(t *testing.T) {
	tests := []struct {
		ref      string
		provider ProviderType
		model    string
	}{
		{"anthropic:claude-sonnet-4-20250514", ProviderAnthropic, "claude-sonnet-4-20250514"},
		{"claude:claude-haiku-3-5-20241022", ProviderAnthropic, "claude-haiku-3-5-20241022"},
		{"gemini:gemini-3-flash-preview", ProviderGemini, "gemini-3-flash-preview"},
		{"google:gemini-embedding-001", ProviderGemini, "gemini-embedding-001"},
		{"llama:phi-3-mini.gguf", ProviderLlama, "phi-3-mini.gguf"},
		{"local:phi-3-mini.gguf", ProviderLlama, "phi-3-mini.gguf"},
		{"claude-sonnet-4-20250514", ProviderAnthropic, "claude-sonnet-4-20250514"},
		{"gemini-3-flash-preview", ProviderGemini, "gemini-3-flash-preview"},
		{"something-else", ProviderGemini, "something-else"},
	}

	for _, tt := range tests {
		provider, model := SplitModelRef(tt.ref)
		if provider != tt.provider || model != tt.model {
			t.Errorf("SplitModelRef(%q) = (%s, %s), want (%s, %s)", tt.ref, provider, model, tt.provider, tt.model)
		}
	}
}

func TestIsTransientError(t *testing.T) {
	if IsTransientError(nil) {
		t.Error("nil error should not be transient")
	}
	if !IsTransientError(errors.New("429 RESOURCE_EXHAUSTED: quota exceeded")) {
		t.Error("rate limit error should be transient")
	}
	if !IsTransientError(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be transient")
	}
	if !IsTransientError(errors.New("request timeout after 30s")) {
		t.Error("timeout error should be transient")
	}
	if IsTransientError(errors.New("invalid request: model not found")) {
		t.Error("invalid request should not be transient")
	}
	if IsTransientError(errors.New("401 unauthorized")) {
		t.Error("auth failure should not be transient")
	}
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New(`googleapi: Error 429: {"error": {"details": [{"retryDelay": "49s"}]}}`)
	if got := ExtractRetryDelay(err); got != 49*time.Second {
		t.Errorf("Expected 49s, got %v", got)
	}

	if got := ExtractRetryDelay(errors.New("plain error")); got != 0 {
		t.Errorf("Expected 0 for error without hint, got %v", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	rc := NewRetryConfig(&common.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: "2s",
		MaxBackoff:     "30s",
		Multiplier:     2.0,
	})

	if got := rc.CalculateBackoff(0, errors.New("429")); got != 2*time.Second {
		t.Errorf("attempt 0: expected 2s, got %v", got)
	}
	if got := rc.CalculateBackoff(1, errors.New("429")); got != 4*time.Second {
		t.Errorf("attempt 1: expected 4s, got %v", got)
	}
	if got := rc.CalculateBackoff(10, errors.New("429")); got != 30*time.Second {
		t.Errorf("attempt 10: expected cap at 30s, got %v", got)
	}

	// Server-suggested delay wins over exponential backoff
	hinted := errors.New(`429 {"retryDelay": "7s"}`)
	if got := rc.CalculateBackoff(0, hinted); got != 7*time.Second {
		t.Errorf("expected hinted 7s, got %v", got)
	}
}

func TestNewRetryConfigDefaults(t *testing.T) {
	rc := NewRetryConfig(&common.RetryConfig{})
	if rc.MaxAttempts != 3 || rc.InitialBackoff != 2*time.Second || rc.MaxBackoff != 30*time.Second || rc.Multiplier != 2.0 {
		t.Errorf("Unexpected defaults: %+v", rc)
	}
}
