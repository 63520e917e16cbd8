// Package agents manages the AI role templates a decision panel is built from.
package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	prov "github.com/deepcision/deepcision/internal/providers"
)

// Role describes one AI persona.
type Role struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	// PromptTemplate is the user message with a {question} placeholder.
	PromptTemplate string   `yaml:"prompt_template"`
	Concurrent     bool     `yaml:"concurrent"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
}

// Manager loads and serves role templates.
type Manager struct {
	mu    sync.RWMutex
	path  string
	roles map[string]Role
}

// NewManager creates a manager for the given template file. If path is empty,
// it resolves $XDG_CONFIG_HOME/deepcision/roles.yaml or
// ~/.config/deepcision/roles.yaml.
func NewManager(path string) *Manager {
	if path == "" {
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
		path = filepath.Join(base, "deepcision", "roles.yaml")
	}
	return &Manager{path: path, roles: map[string]Role{}}
}

// Load reads the role template file.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("open role templates: %w", err)
	}

	var file struct {
		Roles []Role `yaml:"roles"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse role templates: %w", err)
	}

	roles := map[string]Role{}
	for _, r := range file.Roles {
		if r.Name == "" {
			return fmt.Errorf("role template missing name")
		}
		roles[r.Name] = r
	}

	m.mu.Lock()
	m.roles = roles
	m.mu.Unlock()
	return nil
}

// Get returns the configuration for a named role.
func (m *Manager) Get(name string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("role not found: %s", name)
	}
	return r, nil
}

// Names returns all role names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.roles))
	for name := range m.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds or replaces a role at runtime.
func (m *Manager) Register(r Role) {
	m.mu.Lock()
	m.roles[r.Name] = r
	m.mu.Unlock()
}

// BuildMessages renders the system and user messages for a role answering a
// question. The system message introduces the persona; the user message is
// the prompt template with the {question} placeholder substituted.
func (r Role) BuildMessages(question string) []prov.Message {
	template := r.PromptTemplate
	if template == "" {
		template = "{question}"
	}
	return []prov.Message{
		{Role: "system", Content: fmt.Sprintf("You are %s, %s", r.Name, r.Description)},
		{Role: "user", Content: strings.ReplaceAll(template, "{question}", question)},
	}
}
