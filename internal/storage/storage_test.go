package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gkchatty/gkchatty-local/internal/config"
)

func setupLocal(t *testing.T) *LocalStore {
	t.Helper()
	return NewLocal(t.TempDir())
}

func TestLocalPutAndGet(t *testing.T) {
	store := setupLocal(t)
	ctx := context.Background()

	content := "<html><body>release notes</body></html>"
	size, contentType, err := store.Put(ctx, "documents/u1/d1/notes.html", "", strings.NewReader(content))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size)
	}
	if !strings.HasPrefix(contentType, "text/html") {
		t.Errorf("expected sniffed html content type, got %q", contentType)
	}

	rc, err := store.Get(ctx, "documents/u1/d1/notes.html")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != content {
		t.Errorf("round-trip mismatch: %q", got)
	}
}

func TestLocalPutDeclaredContentType(t *testing.T) {
	store := setupLocal(t)

	_, contentType, err := store.Put(context.Background(), "a/b.md", "text/markdown", strings.NewReader("# hi"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if contentType != "text/markdown" {
		t.Errorf("declared content type should win, got %q", contentType)
	}
}

func TestLocalPutEmptyBody(t *testing.T) {
	store := setupLocal(t)

	size, _, err := store.Put(context.Background(), "empty.txt", "", strings.NewReader(""))
	if err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if size != 0 {
		t.Errorf("expected zero size, got %d", size)
	}
}

func TestLocalHead(t *testing.T) {
	store := setupLocal(t)
	ctx := context.Background()

	content := "<!DOCTYPE html><p>hello</p>"
	if _, _, err := store.Put(ctx, "docs/page.html", "", strings.NewReader(content)); err != nil {
		t.Fatalf("put: %v", err)
	}

	info, err := store.Head(ctx, "docs/page.html")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Key != "docs/page.html" {
		t.Errorf("unexpected key %q", info.Key)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), info.Size)
	}
	if !strings.HasPrefix(info.ContentType, "text/html") {
		t.Errorf("expected html content type, got %q", info.ContentType)
	}
	if info.LastModified.IsZero() {
		t.Error("expected non-zero last modified")
	}
}

func TestLocalHeadNotFound(t *testing.T) {
	store := setupLocal(t)

	_, err := store.Head(context.Background(), "nope.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalGetNotFound(t *testing.T) {
	store := setupLocal(t)

	_, err := store.Get(context.Background(), "missing/file.md")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalList(t *testing.T) {
	store := setupLocal(t)
	ctx := context.Background()

	for _, key := range []string{
		"documents/u1/d1/a.md",
		"documents/u1/d2/b.md",
		"documents/u2/d3/c.md",
		"diagnostics/probe.txt",
	} {
		if _, _, err := store.Put(ctx, key, "", strings.NewReader("x")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 objects, got %d", len(all))
	}

	u1, err := store.List(ctx, "documents/u1/")
	if err != nil {
		t.Fatalf("list prefix: %v", err)
	}
	if len(u1) != 2 {
		t.Fatalf("expected 2 objects under documents/u1/, got %d", len(u1))
	}
	if u1[0].Key != "documents/u1/d1/a.md" || u1[1].Key != "documents/u1/d2/b.md" {
		t.Errorf("expected sorted keys, got %q and %q", u1[0].Key, u1[1].Key)
	}
}

func TestLocalListEmpty(t *testing.T) {
	store := NewLocal(filepath.Join(t.TempDir(), "never-created"))

	infos, err := store.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list on missing base dir: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("expected no objects, got %d", len(infos))
	}
}

func TestLocalDelete(t *testing.T) {
	store := setupLocal(t)
	ctx := context.Background()

	if _, _, err := store.Put(ctx, "documents/u1/d1/a.md", "", strings.NewReader("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "documents/u1/d1/a.md"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "documents/u1/d1/a.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Empty parents are pruned.
	if _, err := os.Stat(filepath.Join(store.baseDir, "documents")); !os.IsNotExist(err) {
		t.Errorf("expected empty parent dirs removed, stat err = %v", err)
	}
}

func TestLocalDeleteMissingKey(t *testing.T) {
	store := setupLocal(t)

	if err := store.Delete(context.Background(), "never/was.md"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	store := setupLocal(t)
	ctx := context.Background()

	for _, key := range []string{"../escape.txt", "/abs/path.txt", "a/../../b"} {
		if _, _, err := store.Put(ctx, key, "", strings.NewReader("x")); err == nil {
			t.Errorf("expected put %q to fail", key)
		}
		if _, err := store.Get(ctx, key); err == nil {
			t.Errorf("expected get %q to fail", key)
		}
	}
}

func TestDocumentKey(t *testing.T) {
	key, err := DocumentKey("user-1", "doc-1", "API Guide.md")
	if err != nil {
		t.Fatalf("document key: %v", err)
	}
	if key != "documents/user-1/doc-1/API Guide.md" {
		t.Errorf("unexpected key %q", key)
	}
}

func TestDocumentKeySanitizesName(t *testing.T) {
	key, err := DocumentKey("u", "d", "nested/path\\name.md")
	if err != nil {
		t.Fatalf("document key: %v", err)
	}
	if key != "documents/u/d/nested_path_name.md" {
		t.Errorf("unexpected key %q", key)
	}
}

func TestDocumentKeyRejectsTraversal(t *testing.T) {
	if _, err := DocumentKey("u", "d", "../../etc/passwd"); err == nil {
		t.Error("expected traversal name to be rejected")
	}
	if _, err := DocumentKey("", "d", "a.md"); err == nil {
		t.Error("expected empty user id to be rejected")
	}
}

func TestNewFromConfigDefaultsToLocal(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}

	store, err := NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new from config: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("expected local store, got %T", store)
	}
}

func TestNewFromConfigUnknownBackend(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}
	cfg.Storage.Backend = "ftp"

	if _, err := NewFromConfig(context.Background(), cfg); err == nil {
		t.Error("expected unknown backend to fail")
	}
}

func TestApplyPrefix(t *testing.T) {
	cases := []struct {
		prefix, key, want string
	}{
		{"", "a/b", "a/b"},
		{"kb", "a/b", "kb/a/b"},
		{"/kb/", "/a/b", "kb/a/b"},
		{"kb", "", "kb"},
	}
	for _, c := range cases {
		if got := applyPrefix(c.prefix, c.key); got != c.want {
			t.Errorf("applyPrefix(%q, %q) = %q, want %q", c.prefix, c.key, got, c.want)
		}
	}
}
