// Package crawler walks a tracked root directory and produces FileRecords
// for every regular file within the configured depth and include patterns.
package crawler

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/treefort-labs/dirstore/internal/errors"
	"github.com/treefort-labs/dirstore/internal/record"
)

// hashCacheSize bounds the number of remembered content hashes so
// long-running processes do not grow without limit.
const hashCacheSize = 8192

// Options configures a crawl.
type Options struct {
	// Root is the directory tree to crawl.
	Root string

	// MaxDepth bounds traversal: 0 means files directly in the root only,
	// d means files reachable through at most d subdirectories. Negative
	// means unbounded.
	MaxDepth int

	// IncludePatterns are glob patterns; a file is included when it matches
	// any of them (empty = include everything). Patterns are tried against
	// both the basename and the root-relative path.
	IncludePatterns []string

	// SidecarName is always excluded from the crawl, pattern match or not.
	SidecarName string

	// Workers is the number of concurrent hashing workers (0 = NumCPU).
	Workers int
}

// Result is the outcome of one crawl: the record set plus any recoverable
// per-file warnings collected along the way.
type Result struct {
	Records  []*record.FileRecord
	Warnings []error
}

// hashEntry remembers the fingerprint observed for a (size, mtime) pair so
// unchanged files are not re-read on a rescan.
type hashEntry struct {
	size    int64
	modTime int64
	hash    string
}

// Crawler discovers files under tracked roots. It is safe to reuse across
// scans; the hash cache is what makes rescans of unchanged trees cheap.
type Crawler struct {
	hashCache *lru.Cache[string, hashEntry]
}

// New creates a Crawler.
func New() (*Crawler, error) {
	cache, err := lru.New[string, hashEntry](hashCacheSize)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}
	return &Crawler{hashCache: cache}, nil
}

// Crawl walks opts.Root and returns the FileRecords for every included
// file. A missing or non-directory root is fatal; unreadable files are
// skipped and surfaced as warnings on the result.
func (c *Crawler) Crawl(ctx context.Context, opts Options) (*Result, error) {
	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.RootNotFound(opts.Root, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errors.RootNotFound(absRoot, err)
	}
	if !info.IsDir() {
		return nil, errors.RootNotFound(absRoot, nil).
			WithDetail("reason", "not a directory")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	result := &Result{}
	var mu sync.Mutex

	addWarning := func(w error) {
		mu.Lock()
		result.Warnings = append(result.Warnings, w)
		mu.Unlock()
	}

	paths := make(chan string, workers*4)

	g, gctx := errgroup.WithContext(ctx)

	// Walker: discovers candidate files and feeds the worker pool.
	g.Go(func() error {
		defer close(paths)
		return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			relPath, relErr := filepath.Rel(absRoot, path)
			relSlash := filepath.ToSlash(relPath)

			// walkErr first: the root itself can fail ReadDir, and that
			// arrives with relPath "." which must still surface a warning.
			if walkErr != nil {
				if relErr != nil {
					relSlash = path
				}
				addWarning(errors.Wrap(errors.ErrCodeFileUnreadable, walkErr).
					WithDetail("path", relSlash))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if relErr != nil || relPath == "." {
				return nil
			}

			if d.IsDir() {
				// Files inside this directory sit one level deeper than the
				// directory itself; prune subtrees the depth bound can never reach.
				if opts.MaxDepth >= 0 && strings.Count(relSlash, "/")+1 > opts.MaxDepth {
					return filepath.SkipDir
				}
				return nil
			}

			// Regular files only: symlinks, sockets and devices are not records.
			if !d.Type().IsRegular() {
				return nil
			}

			if opts.MaxDepth >= 0 && strings.Count(relSlash, "/") > opts.MaxDepth {
				return nil
			}

			// The sidecar is never a member of its own tracked set.
			if opts.SidecarName != "" && relSlash == opts.SidecarName {
				return nil
			}

			if len(opts.IncludePatterns) > 0 && !matchesAnyPattern(relSlash, opts.IncludePatterns) {
				return nil
			}

			select {
			case paths <- path:
			case <-gctx.Done():
				return gctx.Err()
			}
			return nil
		})
	})

	// Hashing workers: stat and fingerprint files concurrently. Each
	// record's size/hash/mtime come from a single stat+read pass.
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for path := range paths {
				rec, err := c.process(absRoot, path)
				if err != nil {
					addWarning(errors.Wrap(errors.ErrCodeFileUnreadable, err).
						WithDetail("path", path))
					slog.Debug("skipping unreadable file",
						slog.String("path", path),
						slog.String("error", err.Error()))
					continue
				}
				mu.Lock()
				result.Records = append(result.Records, rec)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The pool produces records in arbitrary order; the document set must
	// be deterministic before reconciliation.
	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].Path < result.Records[j].Path
	})

	slog.Debug("crawl complete",
		slog.String("root", absRoot),
		slog.Int("records", len(result.Records)),
		slog.Int("warnings", len(result.Warnings)))

	return result, nil
}

// process builds the FileRecord for one file, consulting the hash cache so
// files whose size and mtime are unchanged are not re-read.
func (c *Crawler) process(absRoot, path string) (*record.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if entry, ok := c.hashCache.Get(path); ok {
		if entry.size == info.Size() && entry.modTime == info.ModTime().UnixNano() {
			return record.Build(absRoot, path, info.Size(), info.ModTime(), entry.hash), nil
		}
	}

	rec, err := record.New(absRoot, path)
	if err != nil {
		return nil, err
	}

	c.hashCache.Add(path, hashEntry{
		size:    rec.Size,
		modTime: rec.LastUpdated.UnixNano(),
		hash:    rec.Hash,
	})
	return rec, nil
}

// matchesAnyPattern reports whether the relative path satisfies at least
// one include pattern. Patterns match either the basename ("*.in") or the
// full relative path ("calculation*/input.in").
func matchesAnyPattern(relSlash string, patterns []string) bool {
	base := filepath.Base(relSlash)
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(pattern, relSlash); err == nil && ok {
			return true
		}
	}
	return false
}
