package namespaces

import (
	"context"
	"errors"
	"testing"

	"github.com/gkchatty/gkchatty-local/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ns := &Namespace{Name: "docs-prod", Owner: "alice", Environment: EnvProd, Description: "production docs"}
	if err := store.Create(ctx, ns); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "docs-prod")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Environment != EnvProd {
		t.Errorf("environment: got %q, want prod", got.Environment)
	}
	if got.Status != StatusPending {
		t.Errorf("status: got %q, want pending on create", got.Status)
	}
	if got.Owner != "alice" {
		t.Errorf("owner: got %q", got.Owner)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, &Namespace{Name: "shared"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Namespace{Name: "shared"}); err == nil {
		t.Fatal("expected duplicate create to fail")
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ensure(ctx, "shared", "system", EnvDev); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := store.SetStatus(ctx, "shared", StatusReady); err != nil {
		t.Fatalf("set status: %v", err)
	}

	// A second Ensure must not reset the existing registration.
	if err := store.Ensure(ctx, "shared", "someone-else", EnvProd); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	got, err := store.Get(ctx, "shared")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusReady {
		t.Errorf("status: got %q, want ready preserved", got.Status)
	}
	if got.Owner != "system" {
		t.Errorf("owner: got %q, want system preserved", got.Owner)
	}
}

func TestListSortedByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"user-u1", "shared", "docs-staging"} {
		if err := store.Ensure(ctx, name, "", EnvDev); err != nil {
			t.Fatalf("ensure %s: %v", name, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 namespaces, got %d", len(list))
	}
	want := []string{"docs-staging", "shared", "user-u1"}
	for i, ns := range list {
		if ns.Name != want[i] {
			t.Errorf("position %d: got %q, want %q", i, ns.Name, want[i])
		}
	}
}

func TestUpdateCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ensure(ctx, "shared", "", EnvDev); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := store.UpdateCounts(ctx, "shared", 4, 120); err != nil {
		t.Fatalf("update counts: %v", err)
	}

	got, err := store.Get(ctx, "shared")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DocumentCount != 4 || got.VectorCount != 120 {
		t.Errorf("counts: got %d/%d, want 4/120", got.DocumentCount, got.VectorCount)
	}
	if got.LastIndexedAt == nil {
		t.Error("expected last_indexed_at to be stamped")
	}
}

func TestMissingNamespaceErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get: got %v, want ErrNotFound", err)
	}
	if err := store.SetStatus(ctx, "nope", StatusReady); !errors.Is(err, ErrNotFound) {
		t.Errorf("set status: got %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete: got %v, want ErrNotFound", err)
	}
}

func TestParseEnvironment(t *testing.T) {
	if env, ok := ParseEnvironment("staging"); !ok || env != EnvStaging {
		t.Errorf("staging: got %q/%v", env, ok)
	}
	if _, ok := ParseEnvironment("production"); ok {
		t.Error("expected unknown environment to be rejected")
	}
}

func TestForUser(t *testing.T) {
	if got := ForUser("u1"); got != "user-u1" {
		t.Errorf("got %q, want user-u1", got)
	}
}
