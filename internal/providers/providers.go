package providers

import (
	"context"
	"encoding/json"
)

// Message is a single chat message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for a completed request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest describes a chat completion call. Messages are required; a
// zero Model and nil knobs fall back to provider defaults.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	// ResponseFormat forces a specific output format, e.g. {"type": "json_object"}.
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

// ChatResponse is the normalized result of a chat completion.
type ChatResponse struct {
	Content      string          `json:"content"`
	Model        string          `json:"model"`
	FinishReason string          `json:"finish_reason"`
	Usage        Usage           `json:"usage"`
	Raw          json.RawMessage `json:"-"`
}

// Provider is the interface every LLM backend implements.
type Provider interface {
	Name() string
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	HealthCheck(ctx context.Context) error
}

// Searcher is implemented by providers that can run web searches.
type Searcher interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
}

// SearchRequest describes a Tavily-style web search.
type SearchRequest struct {
	Query          string   `json:"query"`
	Topic          string   `json:"topic,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	TimeRange      string   `json:"time_range,omitempty"`
	Days           int      `json:"days,omitempty"`
	IncludeAnswer  bool     `json:"include_answer,omitempty"`
	IncludeRaw     bool     `json:"include_raw_content,omitempty"`
	IncludeImages  bool     `json:"include_images,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

// SearchItem is a single web search hit.
type SearchItem struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Score      float64 `json:"score"`
}

// SearchResult is the normalized result of a web search.
type SearchResult struct {
	Query   string       `json:"query"`
	Answer  string       `json:"answer,omitempty"`
	Results []SearchItem `json:"results"`
}
