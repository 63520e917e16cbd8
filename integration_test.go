package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestFullWorkflow tests the complete end-to-end CLI workflow
func TestFullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	binDir := t.TempDir()
	configHome := t.TempDir()

	bin := filepath.Join(binDir, "deepcision")
	if err := buildBinary(bin); err != nil {
		t.Fatalf("Failed to build binary: %v", err)
	}

	env := append(os.Environ(), "XDG_CONFIG_HOME="+configHome)

	t.Run("Version", func(t *testing.T) {
		out := runCLI(t, env, bin, "version")
		if !strings.Contains(out, "deepcision") {
			t.Errorf("version output %q", out)
		}
	})

	t.Run("Init", func(t *testing.T) {
		runCLI(t, env, bin, "init")
		for _, name := range []string{"config.yaml", "roles.yaml", "secrets.env"} {
			if _, err := os.Stat(filepath.Join(configHome, "deepcision", name)); err != nil {
				t.Errorf("%s not created: %v", name, err)
			}
		}
	})

	t.Run("Roles", func(t *testing.T) {
		out := runCLI(t, env, bin, "roles")
		for _, role := range []string{"analyst", "skeptic", "economist"} {
			if !strings.Contains(out, role) {
				t.Errorf("role %s missing from output %q", role, out)
			}
		}
	})

	t.Run("Providers", func(t *testing.T) {
		out := runCLI(t, env, bin, "providers")
		if !strings.Contains(out, "default: deepseek") {
			t.Errorf("providers output %q", out)
		}
	})

	t.Run("Cache_Stats", func(t *testing.T) {
		out := runCLI(t, env, bin, "cache", "stats")
		if !strings.Contains(out, "enabled: true") {
			t.Errorf("cache stats output %q", out)
		}
	})

	t.Run("History_Empty", func(t *testing.T) {
		out := runCLI(t, env, bin, "history")
		if strings.TrimSpace(out) != "" {
			t.Errorf("expected empty history, got %q", out)
		}
	})
}

func buildBinary(path string) error {
	cmd := exec.Command("go", "build", "-o", path, "./cmd/deepcision")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("build failed: %v\nOutput: %s", err, output)
	}
	return nil
}

func runCLI(t *testing.T, env []string, bin string, args ...string) string {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = env
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %s failed: %v\nOutput: %s", bin, strings.Join(args, " "), err, output)
	}
	return string(output)
}
