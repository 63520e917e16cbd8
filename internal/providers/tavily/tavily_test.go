package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	prov "github.com/deepcision/deepcision/internal/providers"
)

func testConfig(baseURL string) prov.Config {
	var cfg prov.Config
	cfg.Providers.Tavily.APIKey = "tvly-test"
	cfg.Providers.Tavily.BaseURL = baseURL
	return cfg
}

func TestSearchValidation(t *testing.T) {
	c := New(testConfig("http://unused"))

	if _, err := c.Search(context.Background(), prov.SearchRequest{}); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := c.Search(context.Background(), prov.SearchRequest{Query: "q", MaxResults: 20}); err == nil {
		t.Error("expected error for max_results > 19")
	}
	if _, err := c.Search(context.Background(), prov.SearchRequest{Query: "q", Days: -1}); err == nil {
		t.Error("expected error for negative days")
	}
}

func TestSearchDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tvly-test" {
			t.Errorf("auth header %q", r.Header.Get("Authorization"))
		}

		var req prov.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MaxResults != 5 {
			t.Errorf("max_results %d, want default 5", req.MaxResults)
		}
		if req.Topic != TopicGeneral {
			t.Errorf("topic %q, want %q", req.Topic, TopicGeneral)
		}
		if req.SearchDepth != DepthBasic {
			t.Errorf("depth %q, want %q", req.SearchDepth, DepthBasic)
		}

		_ = json.NewEncoder(w).Encode(prov.SearchResult{
			Query:  req.Query,
			Answer: "summary",
			Results: []prov.SearchItem{
				{Title: "Result", URL: "https://example.com", Content: "body", Score: 0.9},
			},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	result, err := c.Search(context.Background(), prov.SearchRequest{Query: "go concurrency"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Answer != "summary" {
		t.Errorf("answer %q", result.Answer)
	}
	if len(result.Results) != 1 {
		t.Fatalf("results %d, want 1", len(result.Results))
	}
	if result.Results[0].Title != "Result" {
		t.Errorf("title %q", result.Results[0].Title)
	}
}

func TestSearchOptionsForwarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["include_images"] != true {
			t.Errorf("include_images = %v, want true", body["include_images"])
		}
		if body["include_answer"] != true {
			t.Errorf("include_answer = %v, want true", body["include_answer"])
		}
		_ = json.NewEncoder(w).Encode(prov.SearchResult{Query: "q"})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Search(context.Background(), prov.SearchRequest{
		Query:         "q",
		IncludeAnswer: true,
		IncludeImages: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
}

func TestExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("path %s", r.URL.Path)
		}
		var req ExtractRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ExtractDepth != DepthBasic {
			t.Errorf("depth %q, want basic", req.ExtractDepth)
		}
		_ = json.NewEncoder(w).Encode(ExtractResult{
			Results: []ExtractedPage{{URL: "https://example.com", RawContent: "page text"}},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))

	if _, err := c.Extract(context.Background(), nil, ""); err == nil {
		t.Error("expected error for empty url list")
	}

	result, err := c.Extract(context.Background(), []string{"https://example.com"}, "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].RawContent != "page text" {
		t.Errorf("unexpected result %+v", result)
	}
}
