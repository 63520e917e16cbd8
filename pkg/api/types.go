package api

// v0 contains public types for early SDK usage.

// QuerySpec describes a single-provider question.
type QuerySpec struct {
	Provider    string   `json:"provider" yaml:"provider"`
	Role        string   `json:"role,omitempty" yaml:"role"`
	Model       string   `json:"model,omitempty" yaml:"model"`
	Prompt      string   `json:"prompt" yaml:"prompt"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	NoCache     bool     `json:"no_cache,omitempty" yaml:"no_cache"`
}

// DecisionSpec describes a panel decision: one question fanned out across
// a set of roles, then synthesized.
type DecisionSpec struct {
	Question string   `json:"question" yaml:"question"`
	Roles    []string `json:"roles" yaml:"roles"`
}

type DecisionStatus string

const (
	DecisionPending   DecisionStatus = "pending"
	DecisionRunning   DecisionStatus = "running"
	DecisionSucceeded DecisionStatus = "succeeded"
	DecisionFailed    DecisionStatus = "failed"
)
