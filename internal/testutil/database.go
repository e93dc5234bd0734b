package testutil

import (
	"testing"

	"github.com/igoyetche/plex-update-script/internal/database"
)

// NewTestStore creates an in-memory run journal with the schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) database.Store {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open run journal: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
