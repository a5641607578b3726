// Package storage provides the object store that holds the original
// bytes of uploaded documents. Two backends exist: the local filesystem
// (default, keeps fully-local installs dependency-free) and Amazon S3.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gkchatty/gkchatty-local/internal/config"
)

// ErrNotFound is returned when a storage key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object. ContentType is only populated
// by Put and Head; listings report key, size and modification time.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStore is the storage abstraction for document originals. Put
// sniffs the content type from the first 512 bytes when the caller
// does not declare one, and returns the stored size and final type.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// NewFromConfig builds the object store the configuration selects. An
// unset backend means local.
func NewFromConfig(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageS3:
		return NewS3(ctx, cfg.Storage.S3)
	case config.StorageLocal, "":
		return NewLocal(cfg.ObjectsDir()), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

// DocumentKey builds the canonical key for an uploaded document:
// documents/<user_id>/<doc_id>/<original_file_name>.
func DocumentKey(userID, docID, fileName string) (string, error) {
	if userID == "" || docID == "" {
		return "", errors.New("user id and document id are required")
	}
	name, err := sanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join("documents", userID, docID, name), nil
}

// sanitizeFileName removes path separators and rejects traversal
// patterns so an uploaded name can never escape its key prefix.
func sanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// sniffContent reads up to 512 bytes to detect the content type and
// returns a reader that replays the sniffed bytes before the rest.
// The declared type wins when non-empty.
func sniffContent(r io.Reader, declared string) (io.Reader, string, error) {
	var sniff [512]byte
	n, err := io.ReadFull(r, sniff[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", fmt.Errorf("read sniff: %w", err)
	}

	contentType := declared
	if contentType == "" {
		contentType = http.DetectContentType(sniff[:n])
	}

	return io.MultiReader(bytes.NewReader(sniff[:n]), r), contentType, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
