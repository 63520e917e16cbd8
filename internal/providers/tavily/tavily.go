// Package tavily implements the Tavily web search and content extraction API.
package tavily

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

const DefaultBaseURL = "https://api.tavily.com/v1"

// Search topic options
const (
	TopicGeneral = "general"
	TopicNews    = "news"
)

// Search and extract depth options
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

type Client struct {
	apiKey  string
	baseURL string
	client  *prov.RetryableHTTPClient
}

func New(cfg prov.Config) *Client {
	baseURL := cfg.Providers.Tavily.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := time.Duration(cfg.Providers.Tavily.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  cfg.Providers.Tavily.APIKey,
		baseURL: baseURL,
		client:  prov.NewRetryableHTTPClient(timeout, 5),
	}
}

func (c *Client) Name() string { return "tavily" }

// Search executes a web search via POST /search.
func (c *Client) Search(ctx context.Context, req prov.SearchRequest) (*prov.SearchResult, error) {
	if req.Query == "" {
		return nil, prov.ValidationError{Field: "query", Value: "", Message: "query is required"}
	}
	if req.MaxResults == 0 {
		req.MaxResults = 5
	}
	if req.MaxResults < 1 || req.MaxResults > 19 {
		return nil, prov.ValidationError{
			Field:   "max_results",
			Value:   fmt.Sprintf("%d", req.MaxResults),
			Message: "max_results must be between 1 and 19",
		}
	}
	if req.Days < 0 {
		return nil, prov.ValidationError{Field: "days", Value: fmt.Sprintf("%d", req.Days), Message: "days must be greater than 0"}
	}
	if req.Topic == "" {
		req.Topic = TopicGeneral
	}
	if req.SearchDepth == "" {
		req.SearchDepth = DepthBasic
	}

	raw, err := c.doRequest(ctx, "/search", req)
	if err != nil {
		return nil, err
	}

	var result prov.SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return &result, nil
}

// ExtractRequest describes a content extraction call.
type ExtractRequest struct {
	URLs         []string `json:"urls"`
	IncludeImage bool     `json:"include_images"`
	ExtractDepth string   `json:"extract_depth"`
}

// ExtractedPage is one extracted document.
type ExtractedPage struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// ExtractResult is the response of POST /extract.
type ExtractResult struct {
	Results       []ExtractedPage `json:"results"`
	FailedResults []struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"failed_results"`
}

// Extract fetches page content for one or more URLs via POST /extract.
func (c *Client) Extract(ctx context.Context, urls []string, depth string) (*ExtractResult, error) {
	if len(urls) == 0 {
		return nil, prov.ValidationError{Field: "urls", Value: "", Message: "at least one url is required"}
	}
	if depth == "" {
		depth = DepthBasic
	}

	raw, err := c.doRequest(ctx, "/extract", ExtractRequest{URLs: urls, ExtractDepth: depth})
	if err != nil {
		return nil, err
	}

	var result ExtractResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode extract result: %w", err)
	}
	return &result, nil
}

// HealthCheck runs a minimal search to verify the key and service.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Search(ctx, prov.SearchRequest{Query: "ping", MaxResults: 1})
	return err
}

func (c *Client) doRequest(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, prov.NewAPIError("tavily", resp.StatusCode, string(data))
	}
	return data, nil
}
