package testsupport

import (
	"context"
	"testing"

	"qrassure/internal/config"
	"qrassure/internal/history"
	"qrassure/internal/logging"
)

// MustOpenHistory opens the outcome history for cfg and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(context.Background(), cfg.HistoryPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
