// Package deepseek implements the DeepSeek chat completion API.
// Both deepseek-chat and deepseek-reasoner models are supported.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	prov "github.com/deepcision/deepcision/internal/providers"
)

const (
	DefaultBaseURL = "https://api.deepseek.com"

	ModelChat     = "deepseek-chat"
	ModelReasoner = "deepseek-reasoner"
)

// Model defaults from the DeepSeek API docs. The reasoner runs colder and
// shorter than the chat model.
var modelDefaults = map[string]struct {
	Temperature float64
	MaxTokens   int
}{
	ModelChat:     {Temperature: 0.7, MaxTokens: 2000},
	ModelReasoner: {Temperature: 0.3, MaxTokens: 1500},
}

type Provider struct {
	apiKey    string
	baseURL   string
	model     string
	client    *prov.RetryableHTTPClient
	validator *prov.RequestValidator
}

func New(cfg prov.Config) *Provider {
	baseURL := cfg.Providers.DeepSeek.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Providers.DeepSeek.Model
	if model == "" {
		model = ModelChat
	}
	timeout := time.Duration(cfg.Providers.DeepSeek.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		apiKey:    cfg.Providers.DeepSeek.APIKey,
		baseURL:   baseURL,
		model:     model,
		client:    prov.NewRetryableHTTPClient(timeout, 5),
		validator: prov.NewRequestValidator(),
	}
}

func (p *Provider) Name() string { return "deepseek" }

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []prov.Message    `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Stream         bool              `json:"stream"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage prov.Usage `json:"usage"`
}

// ChatCompletion calls POST /v1/chat/completions.
func (p *Provider) ChatCompletion(ctx context.Context, req prov.ChatRequest) (*prov.ChatResponse, error) {
	if err := p.validator.ValidateChatRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	defaults := modelDefaults[model]
	if defaults.MaxTokens == 0 {
		defaults = modelDefaults[ModelChat]
	}

	temperature := defaults.Temperature
	if req.Temperature != nil {
		temperature = prov.ClampTemperature(*req.Temperature)
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaults.MaxTokens
	}

	body := chatCompletionRequest{
		Model:          model,
		Messages:       req.Messages,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		Stream:         false,
		ResponseFormat: req.ResponseFormat,
	}

	raw, err := p.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in deepseek response", prov.ErrBadResponse)
	}

	return &prov.ChatResponse{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage:        parsed.Usage,
		Raw:          raw,
	}, nil
}

// HealthCheck queries the balance endpoint to verify the key and service.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.doRequest(ctx, http.MethodGet, "/v1/user/balance", nil)
	return err
}

func (p *Provider) doRequest(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	url := p.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepseek request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, prov.NewAPIError("deepseek", resp.StatusCode, errorMessage(data))
	}
	return data, nil
}

// errorMessage pulls the message out of an API error body, falling back to
// the raw body when the shape is unexpected.
func errorMessage(data []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(data)
}
