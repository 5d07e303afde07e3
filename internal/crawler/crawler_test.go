package crawler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treefort-labs/dirstore/internal/errors"
)

// buildTree creates the canonical test tree: one file at the root, four
// files one level down, one file two levels down.
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"root_file.txt":                       "top",
		"calculation1/input.in":               "",
		"calculation1/output.out":             "result one",
		"calculation2/input.in":               "parameters",
		"calculation2/output.out":             "result two",
		"nested/deep/file_2_levels_deep.json": `{"a":1}`,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func crawl(t *testing.T, opts Options) *Result {
	t.Helper()
	c, err := New()
	require.NoError(t, err)
	result, err := c.Crawl(context.Background(), opts)
	require.NoError(t, err)
	return result
}

func TestCrawlUnbounded(t *testing.T) {
	root := buildTree(t)
	result := crawl(t, Options{Root: root, MaxDepth: -1})
	assert.Len(t, result.Records, 6)
	assert.Empty(t, result.Warnings)
}

func TestCrawlMaxDepth(t *testing.T) {
	root := buildTree(t)

	tests := []struct {
		depth int
		want  int
	}{
		{0, 1},
		{1, 5},
		{2, 6},
	}
	for _, tt := range tests {
		result := crawl(t, Options{Root: root, MaxDepth: tt.depth})
		assert.Len(t, result.Records, tt.want, "depth %d", tt.depth)
	}
}

func TestCrawlIncludePatterns(t *testing.T) {
	root := buildTree(t)

	// The sidecar matches *.json but must never join its own tracked set.
	require.NoError(t, os.WriteFile(filepath.Join(root, "FileStore.json"), []byte("[]"), 0o644))

	result := crawl(t, Options{
		Root:            root,
		MaxDepth:        -1,
		IncludePatterns: []string{"*.in", "*.json"},
		SidecarName:     "FileStore.json",
	})
	assert.Len(t, result.Records, 3)
	for _, rec := range result.Records {
		assert.NotEqual(t, "FileStore.json", rec.Name)
	}
}

func TestCrawlPatternAgainstRelativePath(t *testing.T) {
	root := buildTree(t)
	result := crawl(t, Options{
		Root:            root,
		MaxDepth:        -1,
		IncludePatterns: []string{"calculation1/*"},
	})
	assert.Len(t, result.Records, 2)
}

func TestCrawlRootNotFound(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	_, err = c.Crawl(context.Background(), Options{Root: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRootNotFound, errors.GetCode(err))
	assert.True(t, errors.IsFatal(err))
}

func TestCrawlRootIsFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	c, err := New()
	require.NoError(t, err)
	_, err = c.Crawl(context.Background(), Options{Root: path})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRootNotFound, errors.GetCode(err))
}

func TestCrawlDeterministicOrder(t *testing.T) {
	root := buildTree(t)
	first := crawl(t, Options{Root: root, MaxDepth: -1, Workers: 4})
	second := crawl(t, Options{Root: root, MaxDepth: -1, Workers: 4})

	require.Len(t, second.Records, len(first.Records))
	for i := range first.Records {
		assert.Equal(t, first.Records[i].Path, second.Records[i].Path)
		assert.Equal(t, first.Records[i].FileID, second.Records[i].FileID)
		assert.Equal(t, first.Records[i].Hash, second.Records[i].Hash)
	}
}

func TestCrawlRescanAfterEdit(t *testing.T) {
	root := buildTree(t)
	c, err := New()
	require.NoError(t, err)

	first, err := c.Crawl(context.Background(), Options{Root: root, MaxDepth: -1})
	require.NoError(t, err)

	target := filepath.Join(root, "calculation1", "input.in")
	require.NoError(t, os.WriteFile(target, []byte("rewritten content"), 0o644))

	second, err := c.Crawl(context.Background(), Options{Root: root, MaxDepth: -1})
	require.NoError(t, err)

	byPath := func(result *Result, path string) (hash, id string) {
		for _, rec := range result.Records {
			if rec.Path == path {
				return rec.Hash, rec.FileID
			}
		}
		t.Fatalf("record not found: %s", path)
		return "", ""
	}

	h1, id1 := byPath(first, target)
	h2, id2 := byPath(second, target)
	assert.NotEqual(t, h1, h2, "content edit must change the hash")
	assert.Equal(t, id1, id2, "content edit must not change the file_id")
}

func TestCrawlSkipsSymlinks(t *testing.T) {
	root := buildTree(t)
	link := filepath.Join(root, "dangling.txt")
	if err := os.Symlink(filepath.Join(root, "no-such-target"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	result := crawl(t, Options{Root: root, MaxDepth: -1})
	assert.Len(t, result.Records, 6)
}

func TestCrawlUnreadableFileWarns(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root: permission bits are not enforced")
	}
	root := buildTree(t)
	locked := filepath.Join(root, "locked.txt")
	require.NoError(t, os.WriteFile(locked, []byte("secret"), 0o000))

	result := crawl(t, Options{Root: root, MaxDepth: -1})
	assert.Len(t, result.Records, 6, "crawl continues past unreadable files")
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, errors.ErrCodeFileUnreadable, errors.GetCode(result.Warnings[0]))
}

func TestCrawlUnlistableRootWarns(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root: permission bits are not enforced")
	}
	root := buildTree(t)
	require.NoError(t, os.Chmod(root, 0o000))
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	// The root stats fine but cannot be listed; the empty result must
	// carry a warning rather than looking like an empty tree.
	result := crawl(t, Options{Root: root, MaxDepth: -1})
	assert.Empty(t, result.Records)
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, errors.ErrCodeFileUnreadable, errors.GetCode(result.Warnings[0]))
}
