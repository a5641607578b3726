package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileState records what was indexed for one file of a namespace.
type FileState struct {
	Hash       string `json:"hash"`
	DocumentID string `json:"document_id"`
}

// State tracks indexed files per namespace so repeat ingest runs skip
// unchanged content and can replace superseded documents.
type State struct {
	Version     int                             `json:"version"`
	Namespaces  map[string]map[string]FileState `json:"namespaces"`
	LastUpdated time.Time                       `json:"last_updated"`
}

// LoadState reads ingest state from the given path. A missing file
// yields empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Version: 1, Namespaces: make(map[string]map[string]FileState)}, nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Namespaces == nil {
		state.Namespaces = make(map[string]map[string]FileState)
	}
	return &state, nil
}

// Save writes the state to the given path.
func (s *State) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	s.Version = 1
	s.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Get returns the recorded state for a file, if any.
func (s *State) Get(namespace, relPath string) (FileState, bool) {
	files, ok := s.Namespaces[namespace]
	if !ok {
		return FileState{}, false
	}
	fs, ok := files[relPath]
	return fs, ok
}

// IsChanged reports whether the file's content hash differs from the
// recorded one. Unknown files count as changed.
func (s *State) IsChanged(namespace, relPath, contentHash string) bool {
	fs, ok := s.Get(namespace, relPath)
	if !ok {
		return true
	}
	return fs.Hash != contentHash
}

// Set records the indexed state for a file.
func (s *State) Set(namespace, relPath string, fs FileState) {
	if s.Namespaces[namespace] == nil {
		s.Namespaces[namespace] = make(map[string]FileState)
	}
	s.Namespaces[namespace][relPath] = fs
}

// Forget drops all recorded state for a namespace.
func (s *State) Forget(namespace string) {
	delete(s.Namespaces, namespace)
}
