package core

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/deepcision/deepcision/internal/agents"
	prov "github.com/deepcision/deepcision/internal/providers"
	"github.com/deepcision/deepcision/internal/telemetry"
	"github.com/deepcision/deepcision/pkg/api"
)

// mockProvider answers every request with a canned reply
type mockProvider struct {
	name  string
	fail  bool
	calls atomic.Int64
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) ChatCompletion(ctx context.Context, req prov.ChatRequest) (*prov.ChatResponse, error) {
	m.calls.Add(1)
	if m.fail {
		return nil, prov.NewAPIError(m.name, 500, "mock failure")
	}
	last := req.Messages[len(req.Messages)-1].Content
	return &prov.ChatResponse{
		Content:      fmt.Sprintf("%s says: %s", m.name, last),
		Model:        "mock-model",
		FinishReason: "stop",
		Usage:        prov.Usage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
	}, nil
}

func (m *mockProvider) HealthCheck(ctx context.Context) error {
	if m.fail {
		return fmt.Errorf("unhealthy")
	}
	return nil
}

// mockSearcher returns fixed search results
type mockSearcher struct {
	calls atomic.Int64
	empty bool
}

func (m *mockSearcher) Name() string { return "mocksearch" }

func (m *mockSearcher) Search(ctx context.Context, req prov.SearchRequest) (*prov.SearchResult, error) {
	m.calls.Add(1)
	if m.empty {
		return &prov.SearchResult{Query: req.Query}, nil
	}
	return &prov.SearchResult{
		Query:  req.Query,
		Answer: "search answer",
		Results: []prov.SearchItem{
			{Title: "Doc", URL: "https://example.com", Content: "relevant content", Score: 0.9},
		},
	}, nil
}

func engineConfig() prov.Config {
	var cfg prov.Config
	cfg.Providers.Default = "mock"
	cfg.Defaults.MaxTokens = 2000
	cfg.Defaults.Concurrency = 2
	cfg.Cache.Enabled = true
	cfg.Cache.MaxEntries = 16
	cfg.Cache.TTLSeconds = 3600
	return cfg
}

func newTestEngine(t *testing.T, searcher prov.Searcher, providers ...prov.Provider) (*Engine, *agents.Manager, *Store) {
	t.Helper()
	cfg := engineConfig()
	reg := prov.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	store := newTestStore(t)
	cache, err := NewCache(store, cfg)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	roles := agents.NewManager("unused")
	return NewEngine(cfg, reg, searcher, roles, cache, store), roles, store
}

func TestAskCaching(t *testing.T) {
	mock := &mockProvider{name: "mock"}
	e, _, _ := newTestEngine(t, nil, mock)
	ctx := context.Background()

	req := prov.ChatRequest{Messages: []prov.Message{{Role: "user", Content: "question"}}}

	first, err := e.Ask(ctx, "", req, false)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if first.Cached {
		t.Error("first answer should not be cached")
	}
	if first.Provider != "mock" {
		t.Errorf("default provider not used: %s", first.Provider)
	}

	second, err := e.Ask(ctx, "", req, false)
	if err != nil {
		t.Fatalf("second Ask failed: %v", err)
	}
	if !second.Cached {
		t.Error("second answer should be cached")
	}
	if second.Content != first.Content {
		t.Error("cached answer differs from original")
	}
	if mock.calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1", mock.calls.Load())
	}

	// noCache bypasses both tiers.
	third, err := e.Ask(ctx, "", req, true)
	if err != nil {
		t.Fatalf("third Ask failed: %v", err)
	}
	if third.Cached {
		t.Error("noCache answer should not be cached")
	}
	if mock.calls.Load() != 2 {
		t.Errorf("provider called %d times, want 2", mock.calls.Load())
	}
}

func TestAskUnknownProvider(t *testing.T) {
	e, _, _ := newTestEngine(t, nil, &mockProvider{name: "mock"})
	_, err := e.Ask(context.Background(), "nonexistent", prov.ChatRequest{
		Messages: []prov.Message{{Role: "user", Content: "q"}},
	}, false)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestAskRole(t *testing.T) {
	mock := &mockProvider{name: "mock"}
	e, roles, _ := newTestEngine(t, nil, mock)
	roles.Register(agents.Role{
		Name:           "analyst",
		Description:    "a careful analyst",
		Provider:       "mock",
		PromptTemplate: "Analyze: {question}",
	})

	answer, err := e.AskRole(context.Background(), "analyst", "migrate?")
	if err != nil {
		t.Fatalf("AskRole failed: %v", err)
	}
	if answer.Role != "analyst" {
		t.Errorf("role %q", answer.Role)
	}
	if !strings.Contains(answer.Content, "Analyze: migrate?") {
		t.Errorf("template not applied: %q", answer.Content)
	}

	if _, err := e.AskRole(context.Background(), "missing", "q"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestDecide(t *testing.T) {
	good := &mockProvider{name: "mock"}
	bad := &mockProvider{name: "bad", fail: true}
	e, roles, store := newTestEngine(t, nil, good, bad)

	roles.Register(agents.Role{Name: "analyst", Description: "analyst", Provider: "mock"})
	roles.Register(agents.Role{Name: "skeptic", Description: "skeptic", Provider: "bad"})

	decision, err := e.Decide(context.Background(), "should we?", nil)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Status != api.DecisionSucceeded {
		t.Errorf("status %s", decision.Status)
	}
	if len(decision.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(decision.Answers))
	}

	var failed int
	for _, a := range decision.Answers {
		if a.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed answers %d, want 1", failed)
	}
	if decision.Summary == "" {
		t.Error("expected a synthesized summary")
	}

	// Decision is persisted.
	list, err := store.ListDecisions(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != decision.ID {
		t.Errorf("decision not persisted: %v", list)
	}
}

func TestDecideAllRolesFail(t *testing.T) {
	bad := &mockProvider{name: "bad", fail: true}
	e, roles, _ := newTestEngine(t, nil, &mockProvider{name: "mock"}, bad)
	roles.Register(agents.Role{Name: "skeptic", Description: "skeptic", Provider: "bad"})

	decision, err := e.Decide(context.Background(), "doomed?", []string{"skeptic"})
	if err == nil {
		t.Fatal("expected error when every role fails")
	}
	if decision.Status != api.DecisionFailed {
		t.Errorf("status %s, want failed", decision.Status)
	}
}

func TestDecideNoRoles(t *testing.T) {
	e, _, _ := newTestEngine(t, nil, &mockProvider{name: "mock"})
	if _, err := e.Decide(context.Background(), "q", nil); err == nil {
		t.Error("expected error with no configured roles")
	}
}

func TestResearch(t *testing.T) {
	mock := &mockProvider{name: "mock"}
	searcher := &mockSearcher{}
	e, _, _ := newTestEngine(t, searcher, mock)

	answer, err := e.Research(context.Background(), "latest go release")
	if err != nil {
		t.Fatalf("Research failed: %v", err)
	}
	if answer.Content == "" {
		t.Error("expected a research answer")
	}
	if searcher.calls.Load() != 1 {
		t.Errorf("searcher called %d times, want 1", searcher.calls.Load())
	}
	// One summarize call plus the final answer.
	if mock.calls.Load() < 2 {
		t.Errorf("provider called %d times, want at least 2", mock.calls.Load())
	}
}

func TestResearchNoSearcher(t *testing.T) {
	e, _, _ := newTestEngine(t, nil, &mockProvider{name: "mock"})
	if _, err := e.Research(context.Background(), "q"); err == nil {
		t.Error("expected error without a search provider")
	}
}

func TestResearchEmptyResults(t *testing.T) {
	e, _, _ := newTestEngine(t, &mockSearcher{empty: true}, &mockProvider{name: "mock"})
	if _, err := e.Research(context.Background(), "q"); err == nil {
		t.Error("expected error for empty search results")
	}
}

func TestPerformanceMetricsRecorded(t *testing.T) {
	mock := &mockProvider{name: "mock"}
	searcher := &mockSearcher{}
	e, roles, _ := newTestEngine(t, searcher, mock)
	roles.Register(agents.Role{Name: "analyst", Description: "analyst", Provider: "mock"})

	collector := telemetry.NewCollector(true, "")
	pm := telemetry.NewPerformanceMonitor(collector, true)
	t.Cleanup(func() {
		pm.Shutdown()
		_ = collector.Shutdown()
	})
	e.SetPerformanceMonitor(pm)

	ctx := context.Background()
	if _, err := e.Ask(ctx, "", prov.ChatRequest{
		Messages: []prov.Message{{Role: "user", Content: "q"}},
	}, true); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if _, err := e.Decide(ctx, "should we?", nil); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if _, err := e.Research(ctx, "latest go release"); err != nil {
		t.Fatalf("Research failed: %v", err)
	}

	recorded := map[string]bool{}
	for _, m := range collector.GetMetrics() {
		recorded[m.Name] = true
	}
	for _, name := range []string{
		"deepcision_query_duration",
		"deepcision_queries_successful",
		"deepcision_decision_panel_duration",
		"deepcision_decision_answers_successful",
		"deepcision_search_duration",
		"deepcision_searches_successful",
	} {
		if !recorded[name] {
			t.Errorf("metric %s not recorded", name)
		}
	}
}

func TestHealth(t *testing.T) {
	good := &mockProvider{name: "mock"}
	bad := &mockProvider{name: "bad", fail: true}
	e, _, _ := newTestEngine(t, nil, good, bad)

	health := e.Health(context.Background())
	if health["mock"] != nil {
		t.Errorf("mock should be healthy: %v", health["mock"])
	}
	if health["bad"] == nil {
		t.Error("bad should be unhealthy")
	}
	if health["store"] != nil {
		t.Errorf("store should be healthy: %v", health["store"])
	}
}
