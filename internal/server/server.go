package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/deepcision/deepcision/internal/agents"
	"github.com/deepcision/deepcision/internal/core"
	prov "github.com/deepcision/deepcision/internal/providers"
	"github.com/deepcision/deepcision/internal/telemetry"
)

// Server exposes the engine over HTTP for the web interface and remote
// clients.
type Server struct {
	Version string
	engine  *core.Engine
	cache   *core.Cache
	roles   *agents.Manager
	token   string
	srv     *http.Server
}

// New creates a server. token may be empty; DEEPCISION_API_TOKEN overrides it
// at request time.
func New(version string, engine *core.Engine, cache *core.Cache, roles *agents.Manager, token string) *Server {
	return &Server{
		Version: version,
		engine:  engine,
		cache:   cache,
		roles:   roles,
		token:   token,
	}
}

func (s *Server) authorized(r *http.Request) bool {
	tok := os.Getenv("DEEPCISION_API_TOKEN")
	if tok == "" {
		tok = s.token
	}
	if tok == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	x := r.Header.Get("X-Auth-Token")
	return auth == "Bearer "+tok || x == tok
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func answerResponse(a *core.Answer) QueryResponse {
	return QueryResponse{
		ID:       a.ID,
		Provider: a.Provider,
		Model:    a.Model,
		Role:     a.Role,
		Content:  a.Content,
		Usage:    a.Usage,
		Cached:   a.Cached,
		Duration: a.Duration.Milliseconds(),
	}
}

// Routes for the server
func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_ = r.Body.Close()

		telemetry.CounterGlobal("deepcision_api_heartbeats", 1, map[string]string{
			"component": "server",
			"endpoint":  "heartbeat",
		})

		writeJSON(w, HeartbeatResponse{Time: time.Now(), Host: r.Host, Version: s.Version})

		telemetry.TimerGlobal("deepcision_api_request_duration", time.Since(start), map[string]string{
			"component": "server",
			"endpoint":  "heartbeat",
			"status":    "200",
		})
	})

	mux.HandleFunc("/v1/query", s.withAuth("query", s.handleQuery))
	mux.HandleFunc("/v1/decide", s.withAuth("decide", s.handleDecide))
	mux.HandleFunc("/v1/roles", s.withAuth("roles", s.handleRoles))
	mux.HandleFunc("/v1/cache/stats", s.withAuth("cache_stats", s.handleCacheStats))
}

// withAuth wraps a handler with token auth and per-endpoint metrics.
func (s *Server) withAuth(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			telemetry.CounterGlobal("deepcision_api_unauthorized", 1, map[string]string{
				"component": "server",
				"endpoint":  endpoint,
			})
			writeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			return
		}

		start := time.Now()
		telemetry.CounterGlobal("deepcision_api_requests", 1, map[string]string{
			"component": "server",
			"endpoint":  endpoint,
		})

		h(w, r)

		telemetry.TimerGlobal("deepcision_api_request_duration", time.Since(start), map[string]string{
			"component": "server",
			"endpoint":  endpoint,
		})
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	defer r.Body.Close()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	var answer *core.Answer
	var err error
	if req.Role != "" {
		answer, err = s.engine.AskRole(r.Context(), req.Role, req.Question)
	} else {
		messages := []prov.Message{}
		if req.System != "" {
			messages = append(messages, prov.Message{Role: "system", Content: req.System})
		}
		messages = append(messages, prov.Message{Role: "user", Content: req.Question})
		answer, err = s.engine.Ask(r.Context(), req.Provider, prov.ChatRequest{
			Model:       req.Model,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		}, req.NoCache)
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, answerResponse(answer))
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	defer r.Body.Close()

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	decision, err := s.engine.Decide(r.Context(), req.Question, req.Roles)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	resp := DecideResponse{
		ID:       decision.ID,
		Question: decision.Question,
		Summary:  decision.Summary,
		Status:   string(decision.Status),
	}
	for i := range decision.Answers {
		a := decision.Answers[i]
		if a.Err != nil {
			continue
		}
		resp.Answers = append(resp.Answers, answerResponse(&a))
	}

	writeJSON(w, resp)
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	resp := RolesResponse{Roles: []RoleInfo{}}
	for _, name := range s.roles.Names() {
		role, err := s.roles.Get(name)
		if err != nil {
			continue
		}
		resp.Roles = append(resp.Roles, RoleInfo{
			Name:        role.Name,
			Description: role.Description,
			Provider:    role.Provider,
			Model:       role.Model,
		})
	}
	writeJSON(w, resp)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, stats)
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.routes(mux)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s.srv.ListenAndServe()
}

// Shutdown the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return fmt.Errorf("server not running")
	}
	return s.srv.Shutdown(ctx)
}
