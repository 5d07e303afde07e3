// Package record defines the FileRecord model: the in-memory view of one
// tracked file, with its content fingerprint and location-derived identity.
//
// The identity split is deliberate: Hash is a function of file content and
// changes on every edit; FileID is a function of the root-relative path
// only, so metadata keyed by FileID survives content edits. A file moved to
// a different path gets a new FileID and its old metadata becomes orphaned
// rather than misattributed.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Key is the document field FileRecords are keyed by.
const Key = "file_id"

// FileRecord represents one regular file under a tracked root at scan time.
// FileRecords are derived views: they are rebuilt on every scan and never
// persisted. Only Metadata round-trips through the sidecar store.
type FileRecord struct {
	// Path is the absolute filesystem path at scan time.
	Path string `json:"path"`
	// Name is the final path component.
	Name string `json:"name"`
	// Parent is the name of the directory immediately enclosing the file.
	Parent string `json:"parent"`
	// Size is the byte length at scan time.
	Size int64 `json:"size"`
	// Hash is the SHA-256 content fingerprint, used only as a change signal.
	Hash string `json:"hash"`
	// FileID is the stable identity digest of the root-relative path.
	FileID string `json:"file_id"`
	// LastUpdated is the filesystem mtime at scan time, normalized to UTC.
	LastUpdated time.Time `json:"last_updated"`
	// Metadata holds user-supplied keys, present only if previously attached.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ComputeFileID derives the stable file identity from a root-relative path.
// The path is normalized to forward slashes so the same tree produces the
// same ids on every platform. Content, size and mtime never influence it.
func ComputeFileID(relPath string) string {
	normalized := filepath.ToSlash(relPath)
	digest := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(digest[:])[:16]
}

// HashFile returns the SHA-256 hex digest of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// New reads the file at absPath and builds its FileRecord. Size, mtime and
// hash come from a single open/stat/read pass so the record is internally
// consistent even if the file is being written concurrently.
func New(root, absPath string) (*FileRecord, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return Build(root, absPath, info.Size(), info.ModTime(), hex.EncodeToString(h.Sum(nil))), nil
}

// Build assembles a FileRecord from already-observed crawl values.
// Used by the crawler when a cached hash is still valid for the observed
// size and mtime.
func Build(root, absPath string, size int64, modTime time.Time, hash string) *FileRecord {
	relPath, err := filepath.Rel(root, absPath)
	if err != nil {
		// absPath always lives under root during a crawl; fall back to the
		// full path rather than dropping the record.
		relPath = absPath
	}

	return &FileRecord{
		Path:        absPath,
		Name:        filepath.Base(absPath),
		Parent:      filepath.Base(filepath.Dir(absPath)),
		Size:        size,
		Hash:        hash,
		FileID:      ComputeFileID(relPath),
		LastUpdated: modTime.UTC(),
	}
}

// ToDocument converts the record into the generic document shape served by
// the query facade. LastUpdated is serialized as RFC 3339 so documents stay
// directly comparable and JSON-representable.
func (r *FileRecord) ToDocument() map[string]any {
	doc := map[string]any{
		"path":         r.Path,
		"name":         r.Name,
		"parent":       r.Parent,
		"size":         r.Size,
		"hash":         r.Hash,
		"file_id":      r.FileID,
		"last_updated": r.LastUpdated.Format(time.RFC3339Nano),
	}
	if r.Metadata != nil {
		doc["metadata"] = r.Metadata
	}
	return doc
}

// FromDocument rebuilds a FileRecord from its document shape.
func FromDocument(doc map[string]any) (*FileRecord, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	var r FileRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return &r, nil
}

// ParseTimestamp parses a document last_updated value back into a time.
func ParseTimestamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
