package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/models"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderAnthropic uses Anthropic Claude API
	ProviderAnthropic ProviderType = "anthropic"
	// ProviderLlama uses a local llama-server
	ProviderLlama ProviderType = "llama"
)

// ContentRequest represents a provider-agnostic content generation request
type ContentRequest struct {
	Messages          []models.Turn
	Model             string
	Temperature       float32
	MaxTokens         int
	SystemInstruction string
}

// ContentResponse represents a provider-agnostic content generation response
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
}

// SplitModelRef splits a "provider:model" reference into its parts.
// A bare model name gets the provider detected from its prefix.
//
//	"anthropic:claude-sonnet-4-20250514" -> anthropic, claude-sonnet-4-20250514
//	"gemini-3-flash"                     -> gemini, gemini-3-flash
//	"llama:phi-3-mini.gguf"              -> llama, phi-3-mini.gguf
func SplitModelRef(ref string) (ProviderType, string) {
	if idx := strings.Index(ref, ":"); idx >= 0 {
		provider := strings.ToLower(strings.TrimSpace(ref[:idx]))
		model := strings.TrimSpace(ref[idx+1:])
		switch provider {
		case "claude", "anthropic":
			return ProviderAnthropic, model
		case "gemini", "google":
			return ProviderGemini, model
		case "llama", "local":
			return ProviderLlama, model
		default:
			return ProviderType(provider), model
		}
	}

	model := strings.TrimSpace(ref)
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "claude-") {
		return ProviderAnthropic, model
	}
	if strings.HasPrefix(lower, "gemini-") {
		return ProviderGemini, model
	}
	return ProviderGemini, model
}

// IsLocalProvider reports whether a provider resolves against the local
// model store instead of a hosted API key.
func IsLocalProvider(provider string) bool {
	switch strings.ToLower(provider) {
	case "llama", "local":
		return true
	}
	return false
}

// Factory creates provider clients from resolved credentials and applies
// client-side rate limits per provider.
type Factory struct {
	config   *common.ProvidersConfig
	llama    *LlamaClient
	limiters map[ProviderType]*rate.Limiter
	logger   arbor.ILogger
}

// NewFactory creates a new provider factory
func NewFactory(config *common.ProvidersConfig, llama *LlamaClient, logger arbor.ILogger) *Factory {
	limiters := map[ProviderType]*rate.Limiter{
		ProviderGemini:    newLimiter(config.Gemini.RateLimit),
		ProviderAnthropic: newLimiter(config.Anthropic.RateLimit),
	}

	return &Factory{
		config:   config,
		llama:    llama,
		limiters: limiters,
		logger:   logger,
	}
}

func newLimiter(interval string) *rate.Limiter {
	d, err := parseDuration(interval)
	if err != nil || d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// GenerateContent generates content with the provider selected by the
// request model, authenticated by the given credential. One attempt; the
// caller owns retry policy.
func (f *Factory) GenerateContent(ctx context.Context, request *ContentRequest, cred *models.Credential) (*ContentResponse, error) {
	provider, model := SplitModelRef(request.Model)

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(request.Messages)).
		Msg("Generating content with provider")

	if limiter, ok := f.limiters[provider]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	switch provider {
	case ProviderAnthropic:
		return f.generateWithClaude(ctx, request, model, cred)
	case ProviderLlama:
		return f.generateWithLlama(ctx, request, model, cred)
	default:
		return f.generateWithGemini(ctx, request, model, cred)
	}
}

// EmbedTexts generates embedding vectors for a batch of texts using the
// embedding provider selected by modelRef.
func (f *Factory) EmbedTexts(ctx context.Context, texts []string, modelRef string, cred *models.Credential) ([][]float32, error) {
	provider, model := SplitModelRef(modelRef)

	if limiter, ok := f.limiters[provider]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	switch provider {
	case ProviderLlama:
		return f.llama.Embed(ctx, texts, cred)
	case ProviderGemini:
		return f.embedWithGemini(ctx, texts, model, cred)
	default:
		return nil, fmt.Errorf("provider %s does not support embeddings", provider)
	}
}

// generateWithClaude generates content using the Anthropic API
func (f *Factory) generateWithClaude(ctx context.Context, request *ContentRequest, model string, cred *models.Credential) (*ContentResponse, error) {
	if cred == nil || cred.APIKey == "" {
		return nil, fmt.Errorf("anthropic credential has no API key")
	}

	opts := []option.RequestOption{option.WithAPIKey(cred.APIKey)}
	if cred.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cred.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	if model == "" {
		model = f.config.Anthropic.Model
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.config.Anthropic.MaxTokens
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(request.Messages))
	for _, msg := range request.Messages {
		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.config.Anthropic.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if request.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: request.SystemInstruction},
		}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Anthropic API")
	}

	return &ContentResponse{
		Text:     text.String(),
		Provider: ProviderAnthropic,
		Model:    model,
	}, nil
}

// generateWithGemini generates content using the Gemini API
func (f *Factory) generateWithGemini(ctx context.Context, request *ContentRequest, model string, cred *models.Credential) (*ContentResponse, error) {
	client, err := f.geminiClient(ctx, cred)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.config.Gemini.Model
	}

	var contents []*genai.Content
	for _, msg := range request.Messages {
		contents = append(contents, genai.NewContentFromText(msg.Content, geminiRole(msg.Role)))
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.config.Gemini.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if request.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemInstruction, genai.RoleUser)
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	return &ContentResponse{
		Text:     responseText,
		Provider: ProviderGemini,
		Model:    model,
	}, nil
}

// geminiRole maps a conversation role onto the typed genai role
// vocabulary. Unknown roles default to user.
func geminiRole(role string) genai.Role {
	if role == "assistant" {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// embedWithGemini generates embeddings using the Gemini API
func (f *Factory) embedWithGemini(ctx context.Context, texts []string, model string, cred *models.Credential) ([][]float32, error) {
	client, err := f.geminiClient(ctx, cred)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.config.Gemini.EmbeddingModel
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding call failed: %w", err)
	}
	return embeddingVectors(resp, len(texts))
}

// embeddingVectors unpacks an embedding response, checking the vector
// count against the request size.
func embeddingVectors(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response from Gemini embedding API")
	}
	if len(resp.Embeddings) != want {
		return nil, fmt.Errorf("gemini embedding call returned %d vectors for %d texts", len(resp.Embeddings), want)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// generateWithLlama generates content using the local llama-server
func (f *Factory) generateWithLlama(ctx context.Context, request *ContentRequest, model string, cred *models.Credential) (*ContentResponse, error) {
	text, err := f.llama.Chat(ctx, request, cred)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = f.config.Llama.ChatModel
	}
	return &ContentResponse{
		Text:     text,
		Provider: ProviderLlama,
		Model:    model,
	}, nil
}

func (f *Factory) geminiClient(ctx context.Context, cred *models.Credential) (*genai.Client, error) {
	if cred == nil || cred.APIKey == "" {
		return nil, fmt.Errorf("gemini credential has no API key")
	}

	cfg := &genai.ClientConfig{
		APIKey:  cred.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cred.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = cred.BaseURL
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}
