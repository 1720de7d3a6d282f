package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/models"
)

// LlamaClient talks to a local llama-server over its OpenAI-compatible
// HTTP API. No API key is involved; the credential carries the model
// file path, which must exist on disk before any call goes out.
type LlamaClient struct {
	config *common.LlamaConfig
	client *http.Client
	logger arbor.ILogger
}

// NewLlamaClient creates a client for the configured llama-server
func NewLlamaClient(config *common.LlamaConfig, logger arbor.ILogger) *LlamaClient {
	return &LlamaClient{
		config: config,
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: logger,
	}
}

type llamaChatRequest struct {
	Model       string             `json:"model,omitempty"`
	Messages    []llamaChatMessage `json:"messages"`
	Temperature float32            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

type llamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llamaChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type llamaEmbedRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type llamaEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Chat runs a chat completion against the local server
func (c *LlamaClient) Chat(ctx context.Context, request *ContentRequest, cred *models.Credential) (string, error) {
	if err := c.verifyModel(cred); err != nil {
		return "", err
	}

	messages := make([]llamaChatMessage, 0, len(request.Messages)+1)
	if request.SystemInstruction != "" {
		messages = append(messages, llamaChatMessage{Role: "system", Content: request.SystemInstruction})
	}
	for _, msg := range request.Messages {
		role := msg.Role
		if role != "assistant" && role != "system" {
			role = "user"
		}
		messages = append(messages, llamaChatMessage{Role: role, Content: msg.Content})
	}

	body := llamaChatRequest{
		Messages:    messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	}

	var resp llamaChatResponse
	if err := c.post(ctx, "/v1/chat/completions", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from llama-server")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed generates embedding vectors for a batch of texts
func (c *LlamaClient) Embed(ctx context.Context, texts []string, cred *models.Credential) ([][]float32, error) {
	if err := c.verifyModel(cred); err != nil {
		return nil, err
	}

	body := llamaEmbedRequest{Input: texts}

	var resp llamaEmbedResponse
	if err := c.post(ctx, "/v1/embeddings", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("llama-server returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("llama-server returned out-of-range embedding index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// verifyModel checks that the credential's model file still exists.
// Local-model credentials go stale when files are removed from the
// model directory; fail fast rather than let the server 404.
func (c *LlamaClient) verifyModel(cred *models.Credential) error {
	if cred == nil || cred.Kind != models.CredentialKindLocalModel {
		return fmt.Errorf("llama provider requires a local model credential")
	}
	if cred.ModelPath == "" {
		return fmt.Errorf("local model credential has no model path")
	}
	if _, err := os.Stat(cred.ModelPath); err != nil {
		return fmt.Errorf("local model file not found: %s", cred.ModelPath)
	}
	return nil
}

func (c *LlamaClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal llama request: %w", err)
	}

	url := c.config.ServerURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create llama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("llama-server request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read llama-server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llama-server returned %d: %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode llama-server response: %w", err)
	}
	return nil
}
