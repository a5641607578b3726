package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/gkchatty/gkchatty-local/internal/alerts"
	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/chat"
	"github.com/gkchatty/gkchatty-local/internal/config"
	"github.com/gkchatty/gkchatty-local/internal/db"
	"github.com/gkchatty/gkchatty-local/internal/diag"
	"github.com/gkchatty/gkchatty-local/internal/documents"
	"github.com/gkchatty/gkchatty-local/internal/embeddings"
	"github.com/gkchatty/gkchatty-local/internal/findings"
	"github.com/gkchatty/gkchatty-local/internal/ingest"
	"github.com/gkchatty/gkchatty-local/internal/llm"
	"github.com/gkchatty/gkchatty-local/internal/namespaces"
	"github.com/gkchatty/gkchatty-local/internal/rag"
	"github.com/gkchatty/gkchatty-local/internal/storage"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// runtime bundles everything a CLI command may need against the local
// deployment. Commands build only the parts they use via the open*
// helpers; Close releases what was opened.
type runtime struct {
	cfg      *config.Config
	database *db.DB

	users    *auth.Store
	docs     *documents.Store
	auditor  *audit.Store
	chats    *chat.Store
	registry *namespaces.Store
	findings *findings.Store
	alerts   *alerts.Store

	embedder embeddings.Embedder
	vectors  vectordb.VectorStore
	objects  storage.ObjectStore
}

// loadConfig loads and validates the config, providing a friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `gkchatty init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// openRuntime opens the database and all SQLite-backed stores.
func openRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &runtime{
		cfg:      cfg,
		database: database,
		users:    auth.NewStore(database),
		docs:     documents.NewStore(database),
		auditor:  audit.NewStore(database),
		chats:    chat.NewStore(database),
		registry: namespaces.NewStore(database),
		findings: findings.NewStore(database),
		alerts:   alerts.NewStore(database),
	}, nil
}

func (rt *runtime) Close() {
	if rt.database != nil {
		rt.database.Close()
	}
}

// openVectors attaches the embedder and the persistent vector store.
func (rt *runtime) openVectors() error {
	embedder, err := embeddings.NewFromConfig(rt.cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	vectors, err := vectordb.NewChromemStore(rt.cfg.VectorDir(), embedder)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	rt.embedder = embedder
	rt.vectors = vectors
	return nil
}

// openObjects attaches the configured object store.
func (rt *runtime) openObjects(ctx context.Context) error {
	objects, err := storage.NewFromConfig(ctx, rt.cfg)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}
	rt.objects = objects
	return nil
}

// pipeline builds the ingest pipeline over the opened stores. Call
// openVectors (and usually openObjects) first.
func (rt *runtime) pipeline() *ingest.Pipeline {
	p := ingest.NewPipeline(rt.docs, rt.vectors, rt.embedder, rt.objects, rt.cfg)
	p.SetRegistry(rt.registry)
	return p
}

// ragService builds the question-answering service. The provider is
// optional; retrieval-only callers pass withProvider=false.
func (rt *runtime) ragService(withProvider bool) (*rag.Service, error) {
	var provider llm.Provider
	if withProvider {
		var err error
		provider, err = llm.NewFromConfig(rt.cfg)
		if err != nil {
			return nil, fmt.Errorf("creating LLM provider: %w", err)
		}
	}

	profile, err := rag.LoadProfile(rt.cfg.ProfilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load assistant profile: %v\n", err)
		profile = nil
	}

	return rag.NewService(rt.vectors, provider, rt.cfg.Model, profile, rag.RetrievalOptions{
		TopK:            rt.cfg.Retrieval.TopK,
		MinSimilarity:   float32(rt.cfg.Retrieval.MinSimilarity),
		MaxContextChars: rt.cfg.Retrieval.MaxContextChars,
	}), nil
}

// diagEnv builds the diagnostic environment over the opened stores.
func (rt *runtime) diagEnv() *diag.Env {
	return &diag.Env{
		Config:   rt.cfg,
		DB:       rt.database,
		Docs:     rt.docs,
		Vectors:  rt.vectors,
		Objects:  rt.objects,
		Registry: rt.registry,
	}
}

// baseURL returns the local server address from config.
func (rt *runtime) baseURL() string {
	return fmt.Sprintf("http://%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port)
}
