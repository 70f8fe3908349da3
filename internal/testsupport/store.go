package testsupport

import (
	"context"
	"testing"

	"splicer/internal/config"
	"splicer/internal/jobs"
)

// MustOpenStore opens the configured jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) jobs.Store {
	t.Helper()

	store, err := jobs.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job of kind with an empty request body.
func NewJob(t testing.TB, store jobs.Store, id string, kind jobs.Kind) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), id, kind, []byte(`{}`))
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
