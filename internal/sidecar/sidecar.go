// Package sidecar persists user metadata for tracked files in a single
// human-readable JSON document adjacent to the tracked root.
//
// The sidecar holds only identity and metadata, never hashes or sizes:
// those are recomputed live from disk on every scan, so a stale sidecar
// can never silently shadow real file content.
package sidecar

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/renameio"

	"github.com/treefort-labs/dirstore/internal/errors"
)

// DefaultName is the sidecar filename used when none is configured.
const DefaultName = "FileStore.json"

// Entry is one persisted record: stable file identity plus the user
// metadata attached to it.
type Entry struct {
	FileID   string         `json:"file_id"`
	Metadata map[string]any `json:"metadata"`
}

// Store reads and writes the sidecar document for one tracked root.
// Writes within one Store are serialized by a mutex. Across processes an
// advisory flock on the sidecar narrows, but does not close, the write
// race: the atomic rename swaps the locked inode out, so concurrent
// writers settle at last-writer-wins. Each write is internally consistent
// either way; taking the lock on the sidecar itself avoids leaving a
// second file inside the tracked tree.
type Store struct {
	path     string
	readOnly bool

	mu   sync.Mutex
	lock *flock.Flock
}

// New creates a sidecar store for the given root. name defaults to
// DefaultName. A read-only store never creates, locks, or writes the file.
func New(root, name string, readOnly bool) *Store {
	if name == "" {
		name = DefaultName
	}
	s := &Store{
		path:     filepath.Join(root, name),
		readOnly: readOnly,
	}
	if !readOnly {
		s.lock = flock.New(s.path)
	}
	return s
}

// Path returns the sidecar file location.
func (s *Store) Path() string {
	return s.path
}

// ReadOnly reports whether writes are refused.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Load parses the sidecar into a file_id -> metadata mapping. A missing
// file is an empty mapping (first run). Unparseable content degrades to an
// empty mapping with a SidecarCorrupt warning rather than aborting the
// connect; the broken file is left on disk untouched until the next write.
func (s *Store) Load() (map[string]map[string]any, []error) {
	entries := make(map[string]map[string]any)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return entries, []error{errors.Wrap(errors.ErrCodeSidecarCorrupt, err).
			WithDetail("path", s.path)}
	}

	var parsed []Entry
	if err := json.Unmarshal(data, &parsed); err != nil {
		slog.Warn("sidecar unparseable, treating as empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return entries, []error{errors.Wrap(errors.ErrCodeSidecarCorrupt, err).
			WithDetail("path", s.path).
			WithSuggestion("inspect or remove the sidecar file; metadata will be rebuilt from future updates")}
	}

	for _, e := range parsed {
		if e.FileID == "" {
			continue
		}
		entries[e.FileID] = e.Metadata
	}
	return entries, nil
}

// Write replaces the sidecar content with the given mapping. The document
// is written to a temporary file and renamed into place so a crash mid-
// write never corrupts previously-good data. Refused on read-only stores.
func (s *Store) Write(entries map[string]map[string]any) error {
	if s.readOnly {
		return errors.ReadOnly("sidecar write")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(errors.ErrCodeSidecarWrite, err).WithDetail("path", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, Entry{FileID: id, Metadata: entries[id]})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeSidecarWrite, err).WithDetail("path", s.path)
	}
	data = append(data, '\n')

	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeSidecarWrite, err).WithDetail("path", s.path)
	}

	slog.Debug("sidecar written",
		slog.String("path", s.path),
		slog.Int("entries", len(out)))
	return nil
}
