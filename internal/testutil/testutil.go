package testutil

import (
	"testing"
	"time"

	"github.com/p-arndt/arenacall/internal/config"
	"github.com/p-arndt/arenacall/internal/store"
)

// TestConfig returns a Config with sensible test defaults.
func TestConfig(sandboxDir string) *config.Config {
	return &config.Config{
		SandboxDir:   sandboxDir,
		DBPath:       ":memory:",
		LogLevel:     "error",
		HistoryLimit: 20,
	}
}

func TestInvocation(name string, args ...int) *store.Invocation {
	return &store.Invocation{
		Name:        name,
		Kind:        "procedure",
		Args:        args,
		Status:      "ok",
		TimeUsage:   1,
		MemoryUsage: 256,
		StartedAt:   time.Now().UTC(),
	}
}

// NewTestStore creates an in-memory SQLite store for testing.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:", 1)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}
