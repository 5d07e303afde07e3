// Package filestore presents a directory tree as a queryable document
// collection. A Store crawls its root, reconciles the discovered records
// with metadata persisted in a JSON sidecar, and exposes mongo-like query,
// sort and update operations keyed by the path-derived file_id.
package filestore

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"time"

	"github.com/treefort-labs/dirstore/internal/crawler"
	"github.com/treefort-labs/dirstore/internal/docstore"
	"github.com/treefort-labs/dirstore/internal/errors"
	"github.com/treefort-labs/dirstore/internal/record"
	"github.com/treefort-labs/dirstore/internal/sidecar"
)

// Options configures a Store.
type Options struct {
	// Root is the directory tree to track.
	Root string

	// ReadOnly refuses Update and suppresses all sidecar writes.
	ReadOnly bool

	// MaxDepth bounds traversal: 0 is root-level files only, negative is
	// unbounded.
	MaxDepth int

	// IncludePatterns are OR'd glob patterns; empty tracks every file.
	IncludePatterns []string

	// SidecarName overrides the metadata sidecar filename.
	SidecarName string

	// Workers sets the crawl concurrency (0 = NumCPU).
	Workers int

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Store is the queryable view of one directory tree. Connect populates it;
// until then every query operation fails with ErrCodeNotConnected.
type Store struct {
	opts    Options
	log     *slog.Logger
	crawler *crawler.Crawler
	sidecar *sidecar.Store

	coll        *docstore.Collection
	pending     map[string]map[string]any
	dirty       bool
	lastUpdated time.Time
	warnings    []error
	connected   bool
}

// New builds a Store for the given root. No filesystem access happens until
// Connect.
func New(opts Options) (*Store, error) {
	if opts.Root == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "store root is required", nil)
	}
	if opts.SidecarName == "" {
		opts.SidecarName = sidecar.DefaultName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cr, err := crawler.New()
	if err != nil {
		return nil, err
	}
	return &Store{
		opts:    opts,
		log:     opts.Logger.With("component", "filestore", "root", opts.Root),
		crawler: cr,
		sidecar: sidecar.New(opts.Root, opts.SidecarName, opts.ReadOnly),
	}, nil
}

// Root returns the tracked root directory.
func (s *Store) Root() string {
	return s.opts.Root
}

// ReadOnly reports whether metadata updates are refused.
func (s *Store) ReadOnly() bool {
	return s.opts.ReadOnly
}

// Connect crawls the root, loads persisted metadata from the sidecar, and
// reconciles the two into the queryable collection. It may be called again
// to rescan; the store is swapped atomically, so a failed Connect leaves
// the previous state untouched.
func (s *Store) Connect(ctx context.Context) error {
	start := time.Now()

	res, err := s.crawler.Crawl(ctx, crawler.Options{
		Root:            s.opts.Root,
		MaxDepth:        s.opts.MaxDepth,
		IncludePatterns: s.opts.IncludePatterns,
		SidecarName:     s.opts.SidecarName,
		Workers:         s.opts.Workers,
	})
	if err != nil {
		return err
	}

	warnings := append([]error(nil), res.Warnings...)

	persisted, loadWarnings := s.sidecar.Load()
	warnings = append(warnings, loadWarnings...)

	// Distinct paths must map to distinct ids; a collision would silently
	// merge two files' metadata, so it is fatal.
	byID := make(map[string]string, len(res.Records))
	for _, rec := range res.Records {
		if prev, ok := byID[rec.FileID]; ok {
			return errors.New(errors.ErrCodeIdentityCollision,
				fmt.Sprintf("file_id %s maps to both %s and %s", rec.FileID, prev, rec.Path), nil)
		}
		byID[rec.FileID] = rec.Path
	}

	coll, err := docstore.NewCollection(record.Key)
	if err != nil {
		return err
	}

	var lastUpdated time.Time
	docs := make([]map[string]any, 0, len(res.Records))
	for _, rec := range res.Records {
		if meta, ok := persisted[rec.FileID]; ok {
			rec.Metadata = meta
		}
		docs = append(docs, rec.ToDocument())
		if rec.LastUpdated.After(lastUpdated) {
			lastUpdated = rec.LastUpdated
		}
	}
	if err := coll.Insert(docs); err != nil {
		coll.Close()
		return err
	}

	// pending keeps every persisted entry, including entries whose file is
	// gone from this scan. Orphaned metadata is retained across rewrites so
	// a temporarily missing file gets its metadata back on return.
	pending := make(map[string]map[string]any, len(persisted))
	for id, meta := range persisted {
		pending[id] = meta
	}

	if s.coll != nil {
		s.coll.Close()
	}
	s.coll = coll
	s.pending = pending
	s.dirty = false
	s.lastUpdated = lastUpdated
	s.warnings = warnings
	s.connected = true

	s.log.Info("store connected",
		"files", len(docs),
		"with_metadata", len(persisted),
		"warnings", len(warnings),
		"elapsed", time.Since(start))
	return nil
}

// Warnings returns the recoverable errors collected during the last Connect.
func (s *Store) Warnings() []error {
	return s.warnings
}

// LastUpdated returns the most recent file mtime observed at the last scan,
// or the zero time for an empty store.
func (s *Store) LastUpdated() time.Time {
	return s.lastUpdated
}

// Query returns a lazy sequence of documents matching filter, shaped by the
// given options. The sequence is restartable: each iteration re-evaluates
// against the current collection state.
func (s *Store) Query(filter docstore.Filter, opts ...docstore.QueryOption) (iter.Seq[map[string]any], error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeNotConnected, "store is not connected", nil)
	}
	return s.coll.Query(filter, opts...)
}

// QueryOne returns the first document matching filter, or ok=false when
// nothing matches.
func (s *Store) QueryOne(filter docstore.Filter, opts ...docstore.QueryOption) (map[string]any, bool, error) {
	seq, err := s.Query(filter, append(opts, docstore.WithLimit(1))...)
	if err != nil {
		return nil, false, err
	}
	for doc := range seq {
		return doc, true, nil
	}
	return nil, false, nil
}

// Count returns the number of documents matching filter.
func (s *Store) Count(filter docstore.Filter) (int, error) {
	if !s.connected {
		return 0, errors.New(errors.ErrCodeNotConnected, "store is not connected", nil)
	}
	return s.coll.Count(filter)
}

// Exists reports whether any document matches filter.
func (s *Store) Exists(filter docstore.Filter) (bool, error) {
	n, err := s.Count(filter)
	return n > 0, err
}

// Keys returns every file_id in the store.
func (s *Store) Keys() ([]string, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeNotConnected, "store is not connected", nil)
	}
	return s.coll.Keys()
}

// Update attaches user metadata to tracked files. Each doc must carry
// keyField (default: the store key, file_id); its "metadata" value replaces
// the target's metadata wholesale. Derived fields (path, size, hash,
// last_updated) are never modified. Docs whose key matches nothing are
// ignored: the store does not invent files.
func (s *Store) Update(docs []map[string]any, keyField string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeNotConnected, "store is not connected", nil)
	}
	if s.opts.ReadOnly {
		return errors.ReadOnly("update")
	}
	if keyField == "" {
		keyField = record.Key
	}

	for _, doc := range docs {
		keyVal, ok := doc[keyField]
		if !ok {
			return errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("update document missing key field %q", keyField), nil)
		}

		meta, _ := doc["metadata"].(map[string]any)

		targets, err := s.resolveTargets(keyField, keyVal)
		if err != nil {
			return err
		}
		for _, target := range targets {
			id, _ := target[record.Key].(string)
			if id == "" {
				continue
			}
			if meta == nil {
				delete(target, "metadata")
				delete(s.pending, id)
			} else {
				target["metadata"] = meta
				s.pending[id] = meta
			}
			if err := s.coll.Insert([]map[string]any{target}); err != nil {
				return err
			}
			s.dirty = true
		}
	}
	return nil
}

// resolveTargets finds the stored documents addressed by one update doc.
func (s *Store) resolveTargets(keyField string, keyVal any) ([]map[string]any, error) {
	if keyField == record.Key {
		id, ok := keyVal.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("%s must be a string", record.Key), nil)
		}
		doc, found, err := s.coll.Get(id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return []map[string]any{doc}, nil
	}

	seq, err := s.coll.Query(docstore.Filter{keyField: keyVal})
	if err != nil {
		return nil, err
	}
	var targets []map[string]any
	for doc := range seq {
		targets = append(targets, doc)
	}
	return targets, nil
}

// Flush writes pending metadata to the sidecar. It is a no-op when nothing
// changed since the last write, and refuses in read-only mode.
func (s *Store) Flush() error {
	if !s.dirty {
		return nil
	}
	if s.opts.ReadOnly {
		return errors.ReadOnly("flush")
	}
	if err := s.sidecar.Write(s.pending); err != nil {
		return err
	}
	s.dirty = false
	s.log.Debug("sidecar flushed", "entries", len(s.pending))
	return nil
}

// Close flushes pending metadata and releases the collection. The store can
// be reused by calling Connect again.
func (s *Store) Close() error {
	var flushErr error
	if s.dirty && !s.opts.ReadOnly {
		flushErr = s.Flush()
	}
	if s.coll != nil {
		if err := s.coll.Close(); err != nil && flushErr == nil {
			flushErr = err
		}
		s.coll = nil
	}
	s.connected = false
	return flushErr
}

// Snapshot is any source of file_id to last-modified mappings. Two stores
// over different copies of a tree compare through it.
type Snapshot interface {
	Timestamps() (map[string]time.Time, error)
}

// Timestamps returns the last-modified time for every tracked file, keyed
// by file_id.
func (s *Store) Timestamps() (map[string]time.Time, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeNotConnected, "store is not connected", nil)
	}
	seq, err := s.coll.Query(nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time)
	for doc := range seq {
		id, _ := doc[record.Key].(string)
		ts, ok := record.ParseTimestamp(doc["last_updated"])
		if id == "" || !ok {
			continue
		}
		out[id] = ts
	}
	return out, nil
}

// NewerIn returns the file_ids present in both this store and other whose
// copy in other was modified strictly later. Files known to only one side
// are not reported; equal timestamps are not newer.
func (s *Store) NewerIn(other Snapshot) ([]string, error) {
	mine, err := s.Timestamps()
	if err != nil {
		return nil, err
	}
	theirs, err := other.Timestamps()
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, ts := range theirs {
		local, ok := mine[id]
		if ok && ts.After(local) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
