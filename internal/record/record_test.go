package record

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "calculation1", "input.in")
	writeFile(t, path, "")

	r, err := New(root, path)
	require.NoError(t, err)

	assert.Equal(t, "input.in", r.Name)
	assert.Equal(t, "calculation1", r.Parent)
	assert.Equal(t, path, r.Path)
	assert.Equal(t, int64(0), r.Size)
	assert.Equal(t, ComputeFileID(filepath.Join("calculation1", "input.in")), r.FileID)
	assert.Equal(t, time.UTC, r.LastUpdated.Location())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, r.LastUpdated.Equal(info.ModTime().UTC()))
}

func TestComputeFileIDStableAcrossContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	writeFile(t, path, "one")

	r1, err := New(root, path)
	require.NoError(t, err)

	writeFile(t, path, "two, a different content entirely")

	r2, err := New(root, path)
	require.NoError(t, err)

	assert.Equal(t, r1.FileID, r2.FileID, "file_id is a function of location only")
	assert.NotEqual(t, r1.Hash, r2.Hash, "hash must track content")
	assert.NotEqual(t, r1.Size, r2.Size)
}

func TestComputeFileIDDistinctPaths(t *testing.T) {
	assert.NotEqual(t, ComputeFileID("a/input.in"), ComputeFileID("b/input.in"))
	assert.Equal(t, ComputeFileID("a/input.in"), ComputeFileID("a/input.in"))
}

func TestComputeFileIDPlatformNormalization(t *testing.T) {
	// Separator normalization keeps ids portable across copied trees.
	assert.Equal(t, ComputeFileID("a/b.txt"), ComputeFileID(filepath.Join("a", "b.txt")))
}

func TestHashIdenticalContentIdenticalHash(t *testing.T) {
	root := t.TempDir()
	p1 := filepath.Join(root, "one.txt")
	p2 := filepath.Join(root, "sub", "two.txt")
	writeFile(t, p1, "same bytes")
	writeFile(t, p2, "same bytes")

	r1, err := New(root, p1)
	require.NoError(t, err)
	r2, err := New(root, p2)
	require.NoError(t, err)

	assert.Equal(t, r1.Hash, r2.Hash)
	assert.NotEqual(t, r1.FileID, r2.FileID)

	h, err := HashFile(p1)
	require.NoError(t, err)
	assert.Equal(t, r1.Hash, h)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestDocumentRoundTrip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data", "run.json")
	writeFile(t, path, `{"ok":true}`)

	r, err := New(root, path)
	require.NoError(t, err)
	r.Metadata = map[string]any{"experiment date": "2022-01-18"}

	doc := r.ToDocument()
	assert.Equal(t, r.FileID, doc["file_id"])
	assert.Equal(t, r.Metadata, doc["metadata"])

	back, err := FromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, r.FileID, back.FileID)
	assert.Equal(t, r.Hash, back.Hash)
	assert.Equal(t, r.Size, back.Size)
	assert.True(t, r.LastUpdated.Equal(back.LastUpdated))
	assert.Equal(t, r.Metadata, back.Metadata)
}

func TestToDocumentOmitsAbsentMetadata(t *testing.T) {
	root := t.TempDir()
	r := Build(root, filepath.Join(root, "x.txt"), 0, time.Now(), "deadbeef")
	doc := r.ToDocument()
	_, present := doc["metadata"]
	assert.False(t, present, "absence, not null")
}

func TestParseTimestamp(t *testing.T) {
	now := time.Now().UTC()
	ts, ok := ParseTimestamp(now.Format(time.RFC3339Nano))
	require.True(t, ok)
	assert.True(t, now.Equal(ts))

	_, ok = ParseTimestamp(42)
	assert.False(t, ok)
	_, ok = ParseTimestamp("not a time")
	assert.False(t, ok)
}
