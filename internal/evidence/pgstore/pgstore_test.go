package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/gavelhq/gavel/internal/evidence"
)

// Integration test; requires a reachable PostgreSQL instance.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GAVEL_PG_TEST_DSN")
	if dsn == "" {
		t.Skip("GAVEL_PG_TEST_DSN not set")
	}
	store, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	in := evidence.Pack{
		ID:          "pgtest-pack-1",
		ChainID:     "pgtest-wf-1",
		Seq:         0,
		Payload:     map[string]any{"step": "intake"},
		ContentHash: "sha256:test",
		CreatedAt:   "2026-08-31T00:00:00Z",
	}
	if err := store.PutPack(in); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.GetPack("pgtest-wf-1", "pgtest-pack-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ContentHash != in.ContentHash || got.Payload["step"] != "intake" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	head, ok, err := store.Head("pgtest-wf-1")
	if err != nil || !ok || head.ID != "pgtest-pack-1" {
		t.Fatalf("unexpected head: ok=%v err=%v head=%+v", ok, err, head)
	}
}
