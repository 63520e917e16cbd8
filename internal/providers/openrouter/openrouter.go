// Package openrouter implements the OpenRouter chat completion API, which
// fronts many upstream model providers behind one endpoint.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	prov "github.com/deepcision/deepcision/internal/providers"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-4"
)

type Provider struct {
	apiKey    string
	baseURL   string
	model     string
	fallbacks []string
	siteURL   string
	siteName  string
	client    *prov.RetryableHTTPClient
	validator *prov.RequestValidator
}

func New(cfg prov.Config) (*Provider, error) {
	key := cfg.Providers.OpenRouter.APIKey
	if key == "" {
		return nil, prov.ValidationError{Field: "api_key", Value: "", Message: "OpenRouter API key not found"}
	}
	if !strings.HasPrefix(key, "sk-or-") && !strings.HasPrefix(key, "sk-") {
		return nil, prov.ValidationError{Field: "api_key", Value: "sk-***", Message: "invalid OpenRouter API key format"}
	}

	baseURL := cfg.Providers.OpenRouter.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Providers.OpenRouter.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := time.Duration(cfg.Providers.OpenRouter.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Provider{
		apiKey:    key,
		baseURL:   baseURL,
		model:     model,
		fallbacks: cfg.Providers.OpenRouter.Fallbacks,
		siteURL:   cfg.Providers.OpenRouter.SiteURL,
		siteName:  cfg.Providers.OpenRouter.SiteName,
		client:    prov.NewRetryableHTTPClient(timeout, 5),
		validator: prov.NewRequestValidator(),
	}, nil
}

func (p *Provider) Name() string { return "openrouter" }

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []prov.Message    `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	// Models lists fallbacks tried in order when the primary model is down.
	Models []string `json:"models,omitempty"`
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

// ChatCompletion calls POST /chat/completions.
func (p *Provider) ChatCompletion(ctx context.Context, req prov.ChatRequest) (*prov.ChatResponse, error) {
	if err := p.validator.ValidateChatRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	temperature := 0.7
	if req.Temperature != nil {
		temperature = prov.ClampTemperature(*req.Temperature)
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	body := chatCompletionRequest{
		Model:          model,
		Messages:       req.Messages,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: req.ResponseFormat,
		Models:         p.fallbacks,
	}

	raw, err := p.doRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in openrouter response", prov.ErrBadResponse)
	}

	return &prov.ChatResponse{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage:        parsed.Usage,
		Raw:          raw,
	}, nil
}

// ModelInfo describes one model available through OpenRouter.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
}

// ListModels calls GET /models.
func (p *Provider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	raw, err := p.doRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	return parsed.Data, nil
}

// Credits reports remaining account credits via GET /credits.
func (p *Provider) Credits(ctx context.Context) (float64, error) {
	raw, err := p.doRequest(ctx, http.MethodGet, "/credits", nil)
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Data struct {
			TotalCredits float64 `json:"total_credits"`
			TotalUsage   float64 `json:"total_usage"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("decode credits: %w", err)
	}
	return parsed.Data.TotalCredits - parsed.Data.TotalUsage, nil
}

// HealthCheck verifies the key and service by listing models.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.ListModels(ctx)
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
	// Optional headers used by OpenRouter for app rankings.
	if p.siteURL != "" {
		req.Header.Set("HTTP-Referer", p.siteURL)
	}
	if p.siteName != "" {
		req.Header.Set("X-Title", p.siteName)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, prov.NewAPIError("openrouter", resp.StatusCode, errorMessage(data))
	}
	return data, nil
}

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
