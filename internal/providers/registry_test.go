package providers

import (
	"context"
	"testing"
)

// stubProvider for registry testing
type stubProvider struct{ name string }

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: "ok", Model: "stub"}, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) error { return nil }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubProvider{name: "alpha"})
	reg.Register(&stubProvider{name: "beta"})

	p, err := reg.Get("alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Name() != "alpha" {
		t.Errorf("expected alpha, got %s", p.Name())
	}

	if _, err := reg.Get("missing"); err == nil {
		t.Error("expected error for unregistered provider")
	}

	if len(reg.Names()) != 2 {
		t.Errorf("expected 2 names, got %d", len(reg.Names()))
	}
}
