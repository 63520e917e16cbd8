package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deepcision/deepcision/internal/agents"
	prov "github.com/deepcision/deepcision/internal/providers"
	"github.com/deepcision/deepcision/internal/telemetry"
	"github.com/deepcision/deepcision/internal/tokenizer"
	"github.com/deepcision/deepcision/pkg/api"
)

// Metrics tracks basic engine counters
type Metrics struct {
	requests int64
	errors   int64
	duration time.Duration
	mu       sync.RWMutex
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records a successful request
func (m *Metrics) RecordRequest(duration time.Duration) {
	m.mu.Lock()
	m.requests++
	m.duration += duration
	m.mu.Unlock()
}

// RecordError records an error
func (m *Metrics) RecordError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

// GetStats returns current metrics
func (m *Metrics) GetStats() (int64, int64, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests, m.errors, m.duration
}

// Answer is the outcome of one question against one provider.
type Answer struct {
	ID       string        `json:"id"`
	Role     string        `json:"role,omitempty"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Content  string        `json:"content"`
	Usage    prov.Usage    `json:"usage"`
	Cached   bool          `json:"cached"`
	Duration time.Duration `json:"-"`
	Err      error         `json:"-"`
}

// Decision is the outcome of a panel run: one answer per role plus a
// synthesized summary.
type Decision struct {
	ID        string             `json:"id"`
	Question  string             `json:"question"`
	Answers   []Answer           `json:"answers"`
	Summary   string             `json:"summary"`
	Status    api.DecisionStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// Engine wires the provider registry, role manager, cache and store into the
// query and decision pipelines.
type Engine struct {
	cfg      prov.Config
	registry *prov.Registry
	searcher prov.Searcher // nil when no search provider is configured
	roles    *agents.Manager
	cache    *Cache
	store    *Store
	tokens   *tokenizer.Service
	metrics  *Metrics
	perf     *telemetry.PerformanceMonitor // nil unless attached by the daemon
}

// NewEngine creates an engine. searcher may be nil; Research then fails with
// a named error.
func NewEngine(cfg prov.Config, registry *prov.Registry, searcher prov.Searcher, roles *agents.Manager, cache *Cache, store *Store) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		searcher: searcher,
		roles:    roles,
		cache:    cache,
		store:    store,
		tokens:   tokenizer.NewService(),
		metrics:  NewMetrics(),
	}
}

// GetMetrics returns current engine counters
func (e *Engine) GetMetrics() (int64, int64, time.Duration) {
	return e.metrics.GetStats()
}

// SetPerformanceMonitor attaches a performance monitor; queries, decisions
// and searches are then recorded on it.
func (e *Engine) SetPerformanceMonitor(pm *telemetry.PerformanceMonitor) {
	e.perf = pm
}

// Health pings each registered provider and the store.
func (e *Engine) Health(ctx context.Context) map[string]error {
	out := map[string]error{}
	for _, name := range e.registry.Names() {
		p, err := e.registry.Get(name)
		if err != nil {
			out[name] = err
			continue
		}
		out[name] = p.HealthCheck(ctx)
	}
	out["store"] = e.store.Ping(ctx)
	return out
}

// Ask sends one request to one provider, consulting the cache first unless
// noCache is set.
func (e *Engine) Ask(ctx context.Context, providerName string, req prov.ChatRequest, noCache bool) (*Answer, error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordRequest(time.Since(start))
	}()

	if providerName == "" {
		providerName = e.cfg.Providers.Default
	}
	p, err := e.registry.Get(providerName)
	if err != nil {
		e.metrics.RecordError()
		return nil, err
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = e.cfg.Defaults.MaxTokens
	}

	var prompt strings.Builder
	for _, m := range req.Messages {
		prompt.WriteString(m.Content)
	}
	if err := e.tokens.CheckBudget(providerName, prompt.String(), prov.MaxMaxTokens); err != nil {
		e.metrics.RecordError()
		return nil, err
	}

	key := Key(providerName, req.Model, req)
	if !noCache {
		if cached, ok := e.cache.Get(ctx, key); ok {
			telemetry.CounterGlobal("deepcision_cache_hits", 1, map[string]string{"provider": providerName})
			if e.perf != nil {
				e.perf.RecordQueryMetrics(providerName, cached.Model, time.Since(start), true, true)
			}
			return &Answer{
				ID:       uuid.NewString(),
				Provider: providerName,
				Model:    cached.Model,
				Content:  cached.Content,
				Usage:    cached.Usage,
				Cached:   true,
				Duration: time.Since(start),
			}, nil
		}
		telemetry.CounterGlobal("deepcision_cache_misses", 1, map[string]string{"provider": providerName})
	}

	resp, err := p.ChatCompletion(ctx, req)
	if err != nil {
		e.metrics.RecordError()
		telemetry.CounterGlobal("deepcision_provider_errors", 1, map[string]string{"provider": providerName})
		if e.perf != nil {
			e.perf.RecordQueryMetrics(providerName, req.Model, time.Since(start), false, false)
		}
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	telemetry.TimerGlobal("deepcision_provider_request_duration", time.Since(start), map[string]string{"provider": providerName})
	if e.perf != nil {
		e.perf.RecordQueryMetrics(providerName, resp.Model, time.Since(start), false, true)
	}

	if !noCache {
		e.cache.Put(ctx, key, providerName, resp)
	}

	return &Answer{
		ID:       uuid.NewString(),
		Provider: providerName,
		Model:    resp.Model,
		Content:  resp.Content,
		Usage:    resp.Usage,
		Duration: time.Since(start),
	}, nil
}

// AskRole resolves a role and asks its provider the rendered question.
func (e *Engine) AskRole(ctx context.Context, roleName, question string) (*Answer, error) {
	role, err := e.roles.Get(roleName)
	if err != nil {
		return nil, err
	}

	req := prov.ChatRequest{
		Model:       role.Model,
		Messages:    role.BuildMessages(question),
		Temperature: role.Temperature,
		MaxTokens:   role.MaxTokens,
	}
	answer, err := e.Ask(ctx, role.Provider, req, false)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", roleName, err)
	}
	answer.Role = roleName
	return answer, nil
}

// Decide fans a question out across a panel of roles with bounded
// concurrency, then synthesizes the successful answers into a final summary
// on the default provider. It fails only when every role fails. The decision
// is persisted before returning.
func (e *Engine) Decide(ctx context.Context, question string, roleNames []string) (*Decision, error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordRequest(time.Since(start))
	}()

	if len(roleNames) == 0 {
		roleNames = e.roles.Names()
	}
	if len(roleNames) == 0 {
		return nil, fmt.Errorf("no roles configured")
	}

	decision := &Decision{
		ID:        uuid.NewString(),
		Question:  question,
		Status:    api.DecisionRunning,
		CreatedAt: time.Now(),
	}

	concurrency := e.cfg.Defaults.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	answers := make([]Answer, 0, len(roleNames))

	for _, roleName := range roleNames {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			answer, err := e.AskRole(ctx, name, question)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.metrics.RecordError()
				log.Warn().Err(err).Str("role", name).Msg("panel role failed")
				answers = append(answers, Answer{ID: uuid.NewString(), Role: name, Err: err})
				return
			}
			answers = append(answers, *answer)
		}(roleName)
	}
	wg.Wait()

	decision.Answers = answers

	var succeeded []Answer
	for _, a := range answers {
		if a.Err == nil {
			succeeded = append(succeeded, a)
		}
	}
	if e.perf != nil {
		e.perf.RecordDecisionMetrics(len(roleNames), time.Since(start), len(succeeded), len(answers)-len(succeeded))
	}
	if len(succeeded) == 0 {
		decision.Status = api.DecisionFailed
		e.persistDecision(ctx, decision)
		return decision, fmt.Errorf("all %d panel roles failed", len(roleNames))
	}

	summary, err := e.synthesize(ctx, question, succeeded)
	if err != nil {
		decision.Status = api.DecisionFailed
		e.persistDecision(ctx, decision)
		return decision, fmt.Errorf("synthesize decision: %w", err)
	}
	decision.Summary = summary
	decision.Status = api.DecisionSucceeded

	e.persistDecision(ctx, decision)
	telemetry.TimerGlobal("deepcision_decision_duration", time.Since(start), map[string]string{
		"roles": fmt.Sprintf("%d", len(roleNames)),
	})
	return decision, nil
}

// synthesize merges panel answers into a final recommendation using the
// default provider.
func (e *Engine) synthesize(ctx context.Context, question string, answers []Answer) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Panel answers:\n")
	for _, a := range answers {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", a.Role, a.Content)
	}
	b.WriteString("\nMerge these perspectives into one final recommendation. State the decision first, then the key reasons and the main risk.")

	req := prov.ChatRequest{
		Messages: []prov.Message{
			{Role: "system", Content: "You are the synthesis stage of a decision system. Be decisive and concise."},
			{Role: "user", Content: b.String()},
		},
	}
	answer, err := e.Ask(ctx, e.cfg.Providers.Default, req, false)
	if err != nil {
		return "", err
	}
	return answer.Content, nil
}

func (e *Engine) persistDecision(ctx context.Context, d *Decision) {
	if err := e.store.SaveDecision(ctx, d); err != nil {
		log.Warn().Err(err).Str("decision", d.ID).Msg("persist decision failed")
	}
}

// Research grounds a question with web search: it queries the search
// provider, summarizes result contents chunk by chunk, then answers from the
// summaries.
func (e *Engine) Research(ctx context.Context, query string) (*Answer, error) {
	if e.searcher == nil {
		return nil, fmt.Errorf("no search provider configured")
	}

	searchStart := time.Now()
	result, err := e.searcher.Search(ctx, prov.SearchRequest{
		Query:         query,
		MaxResults:    8,
		IncludeAnswer: true,
	})
	if e.perf != nil {
		resultCount := 0
		if result != nil {
			resultCount = len(result.Results)
		}
		e.perf.RecordSearchMetrics(e.searcher.Name(), resultCount, time.Since(searchStart), err == nil)
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var docs []string
	for _, item := range result.Results {
		if item.Content == "" {
			continue
		}
		docs = append(docs, fmt.Sprintf("%s (%s)\n%s", item.Title, item.URL, item.Content))
	}
	if len(docs) == 0 && result.Answer == "" {
		return nil, fmt.Errorf("search returned no usable content for %q", query)
	}

	var summaries []string
	if result.Answer != "" {
		summaries = append(summaries, result.Answer)
	}
	for _, chunk := range ChunkDocuments(docs, 3) {
		req := prov.ChatRequest{
			Messages: []prov.Message{
				{Role: "system", Content: "You summarize sources for a research pipeline. Keep only facts relevant to the query."},
				{Role: "user", Content: fmt.Sprintf("Query: %s\n\nSources:\n%s", query, strings.Join(chunk, "\n---\n"))},
			},
		}
		answer, err := e.Ask(ctx, e.cfg.Providers.Default, req, false)
		if err != nil {
			return nil, fmt.Errorf("summarize chunk: %w", err)
		}
		summaries = append(summaries, answer.Content)
	}

	req := prov.ChatRequest{
		Messages: []prov.Message{
			{Role: "system", Content: "Answer the query from the research notes. Cite which note supports each claim."},
			{Role: "user", Content: fmt.Sprintf("Query: %s\n\nNotes:\n%s", query, strings.Join(summaries, "\n---\n"))},
		},
	}
	return e.Ask(ctx, e.cfg.Providers.Default, req, false)
}
