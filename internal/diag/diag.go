// Package diag runs operational health checks against a deployment:
// the database, the vector index, object storage, rate limiting and
// the HTTP API. Failures file findings and can fire alert webhooks.
package diag

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gkchatty/gkchatty-local/internal/config"
	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/storage"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// Status is the outcome of one check.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Result is one check's outcome with timing and human detail.
type Result struct {
	Check   string        `json:"check"`
	Status  Status        `json:"status"`
	Latency time.Duration `json:"latency_ns"`
	Detail  []string      `json:"detail,omitempty"`
}

func (r Result) add(format string, args ...any) Result {
	r.Detail = append(r.Detail, fmt.Sprintf(format, args...))
	return r
}

// Env is everything a check may probe. Checks skip what is nil: a
// CLI run without a server sets no BaseURL, a local run may have no
// object store.
type Env struct {
	Config   *config.Config
	DB       *db.DB
	Docs     *documents.Store
	Vectors  vectordb.VectorStore
	Objects  storage.ObjectStore
	Registry *namespaces.Store

	// BaseURL points at a running server for the api and ratelimit
	// checks. Empty skips them.
	BaseURL string
	// Probe credentials for the authenticated api round-trip.
	ProbeUsername string
	ProbePassword string

	// HTTPClient defaults to a 10s-timeout client.
	HTTPClient *http.Client
}

func (e *Env) client() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Check is one diagnostic.
type Check interface {
	Name() string
	Describe() string
	Run(ctx context.Context, env *Env) Result
}

// All returns every check in display order.
func All() []Check {
	return []Check{
		dbCheck{},
		vectorCheck{},
		metadataCheck{},
		storageCheck{},
		ratelimitCheck{},
		apiCheck{},
	}
}

// ByName selects checks by name; empty names means all.
func ByName(names []string) ([]Check, error) {
	all := All()
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]Check, len(all))
	for _, c := range all {
		byName[c.Name()] = c
	}
	var picked []Check
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown check %q", name)
		}
		picked = append(picked, c)
	}
	return picked, nil
}
