package server

import (
	"time"

	prov "github.com/deepcision/deepcision/internal/providers"
)

type HeartbeatResponse struct {
	Time    time.Time `json:"time"`
	Host    string    `json:"host"`
	Version string    `json:"version"`
}

// QueryRequest asks one question against one provider or role. When Role is
// set the role's provider, model and prompt template apply; Provider and
// Model are then ignored.
type QueryRequest struct {
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Role        string   `json:"role,omitempty"`
	Question    string   `json:"question"`
	System      string   `json:"system,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	NoCache     bool     `json:"no_cache,omitempty"`
}

type QueryResponse struct {
	ID       string     `json:"id"`
	Provider string     `json:"provider"`
	Model    string     `json:"model"`
	Role     string     `json:"role,omitempty"`
	Content  string     `json:"content"`
	Usage    prov.Usage `json:"usage"`
	Cached   bool       `json:"cached"`
	Duration int64      `json:"duration_ms"`
}

// DecideRequest fans a question out to a panel of roles. An empty Roles list
// means every configured role.
type DecideRequest struct {
	Question string   `json:"question"`
	Roles    []string `json:"roles,omitempty"`
}

type DecideResponse struct {
	ID       string          `json:"id"`
	Question string          `json:"question"`
	Summary  string          `json:"summary"`
	Status   string          `json:"status"`
	Answers  []QueryResponse `json:"answers"`
}

type RoleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
	Model       string `json:"model,omitempty"`
}

type RolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
