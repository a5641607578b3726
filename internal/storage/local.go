package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements ObjectStore on the local filesystem. Keys map
// directly to paths under the base directory.
type LocalStore struct {
	baseDir string
}

// NewLocal creates a filesystem object store rooted at baseDir.
func NewLocal(baseDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir}
}

// Put writes the reader to disk at the given key, sniffing the content
// type when none is declared.
func (s *LocalStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return 0, "", err
	}

	body, finalType, err := sniffContent(r, contentType)
	if err != nil {
		return 0, "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, "", fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, body)
	if err != nil {
		return 0, "", fmt.Errorf("write body: %w", err)
	}

	return written, finalType, nil
}

// Get opens a stored object for reading.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return f, nil
}

// Head returns object metadata. The content type is re-sniffed from the
// file since the filesystem does not record it.
func (s *LocalStore) Head(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	st, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	if st.IsDir() {
		return ObjectInfo{}, ErrNotFound
	}

	info := ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		LastModified: st.ModTime().UTC(),
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("open object %s: %w", key, err)
	}
	defer f.Close()

	var sniff [512]byte
	n, readErr := io.ReadFull(f, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return ObjectInfo{}, fmt.Errorf("read sniff: %w", readErr)
	}
	info.ContentType = http.DetectContentType(sniff[:n])

	return info, nil
}

// List returns all objects whose key starts with prefix, sorted by key.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if prefix != "" {
		if _, err := s.resolve(prefix); err != nil {
			return nil, err
		}
	}

	var infos []ObjectInfo
	err := filepath.WalkDir(s.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		st, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, ObjectInfo{
			Key:          key,
			Size:         st.Size(),
			LastModified: st.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list objects: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete removes a stored object. Deleting a missing key is not an
// error. Empty parent directories are pruned so namespaces do not
// accumulate husks.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	dir := filepath.Dir(fullPath)
	for dir != s.baseDir && strings.HasPrefix(dir, s.baseDir) {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// resolve maps a storage key to an absolute path, rejecting traversal.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

var _ ObjectStore = (*LocalStore)(nil)
