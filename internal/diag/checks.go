package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gkchatty/gkchatty-local/internal/documents"
)

// timed stamps a result with the elapsed time since start.
func timed(r Result, start time.Time) Result {
	r.Latency = time.Since(start)
	return r
}

// ---- db ----

type dbCheck struct{}

func (dbCheck) Name() string     { return "db" }
func (dbCheck) Describe() string { return "SQLite reachable, foreign keys on, row counts sane" }

func (dbCheck) Run(ctx context.Context, env *Env) Result {
	start := time.Now()
	r := Result{Check: "db", Status: StatusOK}

	if env.DB == nil {
		r.Status = StatusSkip
		return timed(r.add("no database configured"), start)
	}
	if err := env.DB.PingContext(ctx); err != nil {
		r.Status = StatusFail
		return timed(r.add("ping failed: %v", err), start)
	}

	var fk int
	if err := env.DB.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk); err == nil && fk != 1 {
		r.Status = StatusWarn
		r = r.add("foreign keys are off")
	}

	var integrity string
	if err := env.DB.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&integrity); err != nil {
		r.Status = StatusFail
		return timed(r.add("quick_check failed: %v", err), start)
	}
	if integrity != "ok" {
		r.Status = StatusFail
		return timed(r.add("quick_check: %s", integrity), start)
	}

	for _, table := range []string{"users", "documents", "audit_entries", "chat_sessions"} {
		var n int
		if err := env.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			r.Status = StatusFail
			return timed(r.add("counting %s: %v", table, err), start)
		}
		r = r.add("%s: %d rows", table, n)
	}
	return timed(r, start)
}

// ---- vector ----

type vectorCheck struct{}

func (vectorCheck) Name() string { return "vector" }
func (vectorCheck) Describe() string {
	return "vector store reachable, namespaces consistent with the registry"
}

func (vectorCheck) Run(ctx context.Context, env *Env) Result {
	start := time.Now()
	r := Result{Check: "vector", Status: StatusOK}

	if env.Vectors == nil {
		r.Status = StatusSkip
		return timed(r.add("no vector store configured"), start)
	}

	stats := env.Vectors.Stats()
	r = r.add("%d vectors across %d namespaces", stats.TotalVectors, len(stats.Namespaces))
	if stats.TotalVectors == 0 {
		r.Status = StatusWarn
		r = r.add("index is empty; run ingest")
	}

	if env.Registry != nil {
		registered, err := env.Registry.List(ctx)
		if err != nil {
			r.Status = StatusFail
			return timed(r.add("listing registry: %v", err), start)
		}
		known := make(map[string]bool, len(registered))
		for _, ns := range registered {
			known[ns.Name] = true
			if env.Vectors.Count(ns.Name) == 0 {
				r.Status = StatusWarn
				r = r.add("registered namespace %q has no vectors", ns.Name)
			}
		}
		for _, name := range env.Vectors.Namespaces() {
			if !known[name] {
				r.Status = StatusWarn
				r = r.add("orphan namespace %q in store but not registry", name)
			}
		}
	}
	return timed(r, start)
}

// ---- metadata ----

type metadataCheck struct{}

func (metadataCheck) Name() string { return "metadata" }
func (metadataCheck) Describe() string {
	return "cross-audit document rows against vector metadata"
}

func (metadataCheck) Run(ctx context.Context, env *Env) Result {
	start := time.Now()
	r := Result{Check: "metadata", Status: StatusOK}

	if env.Docs == nil || env.Vectors == nil {
		r.Status = StatusSkip
		return timed(r.add("needs both the document store and the vector store"), start)
	}

	ready, err := env.Docs.List(ctx, documents.Filter{Status: documents.StatusReady})
	if err != nil {
		r.Status = StatusFail
		return timed(r.add("listing documents: %v", err), start)
	}
	r = r.add("%d ready documents checked", len(ready))

	var legacy, missing, drifted int
	for _, doc := range ready {
		chunks, err := env.Vectors.GetByDocumentID(ctx, doc.Namespace, doc.ID)
		if err != nil {
			r.Status = StatusFail
			return timed(r.add("reading vectors for %s: %v", doc.ID, err), start)
		}
		if len(chunks) == 0 {
			missing++
			continue
		}
		if len(chunks) != doc.ChunkCount {
			drifted++
		}
		for _, chunk := range chunks {
			if chunk.Metadata.DocumentID == "" || chunk.Metadata.UploadedBy == "" {
				legacy++
				break
			}
		}
	}

	if missing > 0 {
		r.Status = StatusFail
		r = r.add("%d ready documents have no vectors", missing)
	}
	if drifted > 0 {
		if r.Status == StatusOK {
			r.Status = StatusWarn
		}
		r = r.add("%d documents with chunk_count drift", drifted)
	}
	if legacy > 0 {
		if r.Status == StatusOK {
			r.Status = StatusWarn
		}
		r = r.add("%d documents carry legacy metadata (missing document_id/uploaded_by)", legacy)
	}
	return timed(r, start)
}

// ---- storage ----

type storageCheck struct{}

func (storageCheck) Name() string     { return "storage" }
func (storageCheck) Describe() string { return "object store round-trip under diagnostics/" }

func (storageCheck) Run(ctx context.Context, env *Env) Result {
	start := time.Now()
	r := Result{Check: "storage", Status: StatusOK}

	if env.Objects == nil {
		r.Status = StatusSkip
		return timed(r.add("no object store configured"), start)
	}

	key := "diagnostics/probe-" + uuid.New().String()
	payload := []byte("gkchatty storage probe " + time.Now().UTC().Format(time.RFC3339))

	if _, _, err := env.Objects.Put(ctx, key, "text/plain", bytes.NewReader(payload)); err != nil {
		r.Status = StatusFail
		return timed(r.add("put failed: %v", err), start)
	}
	// Best effort; a failed delete is reported below anyway.
	defer env.Objects.Delete(context.WithoutCancel(ctx), key)

	info, err := env.Objects.Head(ctx, key)
	if err != nil {
		r.Status = StatusFail
		return timed(r.add("head failed: %v", err), start)
	}
	if info.Size != int64(len(payload)) {
		r.Status = StatusFail
		return timed(r.add("head size %d, wrote %d", info.Size, len(payload)), start)
	}

	rc, err := env.Objects.Get(ctx, key)
	if err != nil {
		r.Status = StatusFail
		return timed(r.add("get failed: %v", err), start)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || !bytes.Equal(got, payload) {
		r.Status = StatusFail
		return timed(r.add("read-back mismatch"), start)
	}

	listed, err := env.Objects.List(ctx, "diagnostics/")
	if err != nil {
		r.Status = StatusFail
		return timed(r.add("list failed: %v", err), start)
	}
	r = r.add("round-trip ok, %d objects under diagnostics/", len(listed))

	if err := env.Objects.Delete(ctx, key); err != nil {
		r.Status = StatusWarn
		r = r.add("delete failed, probe object left behind: %v", err)
	}
	return timed(r, start)
}

// ---- ratelimit ----

type ratelimitCheck struct{}

func (ratelimitCheck) Name() string     { return "ratelimit" }
func (ratelimitCheck) Describe() string { return "limited endpoint returns 429 past its burst" }

func (c ratelimitCheck) Run(ctx context.Context, env *Env) Result {
	start := time.Now()
	r := Result{Check: "ratelimit", Status: StatusOK}

	if env.BaseURL == "" {
		r.Status = StatusSkip
		return timed(r.add("no server to probe; pass --base-url"), start)
	}
	if env.Config != nil && !env.Config.Limits.Enabled {
		r.Status = StatusSkip
		return timed(r.add("rate limiting disabled in config"), start)
	}

	burst := 10
	if env.Config != nil && env.Config.Limits.Auth.Burst > 0 {
		burst = env.Config.Limits.Auth.Burst
	}

	client := env.client()
	url := strings.TrimRight(env.BaseURL, "/") + "/api/auth/login"
	body := []byte(`{"username":"diag-probe","password":"wrong"}`)

	var limited *http.Response
	for i := 0; i < burst+5; i++ {
		resp, err := postJSON(ctx, client, url, body)
		if err != nil {
			r.Status = StatusFail
			return timed(r.add("request %d failed: %v", i+1, err), start)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = resp
			break
		}
	}

	if limited == nil {
		r.Status = StatusFail
		return timed(r.add("no 429 after %d rapid requests", burst+5), start)
	}
	r = r.add("429 received as expected")
	if limited.Header.Get("Retry-After") == "" {
		r.Status = StatusWarn
		r = r.add("429 is missing the Retry-After header")
	}
	return timed(r, start)
}

// ---- api ----

type apiCheck struct{}

func (apiCheck) Name() string     { return "api" }
func (apiCheck) Describe() string { return "healthz, login, authenticated chat round-trip" }

func (c apiCheck) Run(ctx context.Context, env *Env) Result {
	start := time.Now()
	r := Result{Check: "api", Status: StatusOK}

	if env.BaseURL == "" {
		r.Status = StatusSkip
		return timed(r.add("no server to probe; pass --base-url"), start)
	}

	client := env.client()
	base := strings.TrimRight(env.BaseURL, "/")

	t0 := time.Now()
	resp, err := getURL(ctx, client, base+"/healthz")
	if err != nil {
		r.Status = StatusFail
		return timed(r.add("healthz unreachable: %v", err), start)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.Status = StatusFail
		return timed(r.add("healthz status %d", resp.StatusCode), start)
	}
	r = r.add("healthz ok in %s", time.Since(t0).Round(time.Millisecond))

	if env.ProbeUsername == "" {
		r = r.add("no probe credentials; skipping authenticated round-trip")
		return timed(r, start)
	}

	login, _ := json.Marshal(map[string]string{
		"username": env.ProbeUsername,
		"password": env.ProbePassword,
	})
	resp, err = postJSON(ctx, client, base+"/api/auth/login", login)
	if err != nil {
		r.Status = StatusFail
		return timed(r.add("login failed: %v", err), start)
	}
	var loginBody struct {
		Token string `json:"token"`
	}
	err = json.NewDecoder(resp.Body).Decode(&loginBody)
	resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusOK || loginBody.Token == "" {
		r.Status = StatusFail
		return timed(r.add("login status %d", resp.StatusCode), start)
	}
	r = r.add("login ok")

	chat, _ := json.Marshal(map[string]string{"message": "diagnostic probe: reply with anything"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/chat/", bytes.NewReader(chat))
	if err != nil {
		r.Status = StatusFail
		return timed(r.add("building chat request: %v", err), start)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+loginBody.Token)
	t0 = time.Now()
	resp, err = client.Do(req)
	if err != nil {
		r.Status = StatusFail
		return timed(r.add("chat request failed: %v", err), start)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.Status = StatusWarn
		return timed(r.add("chat status %d (provider may be unconfigured)", resp.StatusCode), start)
	}
	r = r.add("chat round-trip ok in %s", time.Since(t0).Round(time.Millisecond))
	return timed(r, start)
}

func getURL(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return client.Do(req)
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}
