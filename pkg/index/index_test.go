package index

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/pkg/errors"
)

const metaDir = ".meta"

func setupIndex(t *testing.T, opts ...Option) (*Index, Workdir) {
	t.Helper()
	root := t.TempDir()
	idx, err := Create(filepath.Join(root, metaDir, "index"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return idx, Workdir{Fs: afero.NewOsFs(), Root: root, Exclude: []string{metaDir}}
}

func writeFile(t *testing.T, w Workdir, rel, content string) {
	t.Helper()
	pth := w.abs(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(pth), 0700))
	require.NoError(t, os.WriteFile(pth, []byte(content), 0600))
}

func paths(deltas []FileDelta) map[string]FileStatus {
	res := make(map[string]FileStatus, len(deltas))
	for _, d := range deltas {
		res[d.Path] = d.Status
	}
	return res
}

func TestCreateOpen(t *testing.T) {
	root := t.TempDir()
	pth := filepath.Join(root, "index")

	assert.False(t, Exists(afero.NewOsFs(), pth))
	_, err := Open(pth)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotExists))

	idx, err := Create(pth)
	require.NoError(t, err)
	require.NoError(t, idx.Put(Entry{Path: "a/b.laz", OID: "sha256:01", Size: 1}))
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	assert.True(t, Exists(afero.NewOsFs(), pth))
	idx, err = Open(pth)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	entry, ok, err := idx.Get("a/b.laz")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sha256:01", entry.OID)
	assert.Equal(t, pth, idx.Path())
}

func TestEntries(t *testing.T) {
	idx, _ := setupIndex(t)

	require.NoError(t, idx.Put(
		Entry{Path: "nz/auckland/a.laz", OID: "sha256:01"},
		Entry{Path: "nz/auckland/b.laz", OID: "sha256:02"},
		Entry{Path: "nz/aucklandia/c.laz", OID: "sha256:03"},
		Entry{Path: "top.txt", OID: "sha256:04"},
	))

	all, err := idx.Entries("")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	scoped, err := idx.Entries("nz/auckland")
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, "nz/auckland/a.laz", scoped[0].Path)
	assert.Equal(t, "nz/auckland/b.laz", scoped[1].Path)

	single, err := idx.Entries("top.txt")
	require.NoError(t, err)
	assert.Len(t, single, 1)

	require.NoError(t, idx.Delete("nz/auckland/a.laz"))
	_, ok, err := idx.Get("nz/auckland/a.laz")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idx.Clear())
	all, err = idx.Entries("")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLargeWrite(t *testing.T) {
	idx, _ := setupIndex(t)

	entries := make([]Entry, 0, maxTxnEntries+10)
	for i := 0; i < maxTxnEntries+10; i++ {
		entries = append(entries, Entry{Path: "ds/" + strconv.Itoa(i) + ".laz", OID: "sha256:00"})
	}
	require.NoError(t, idx.Put(entries...))

	all, err := idx.Entries("ds")
	require.NoError(t, err)
	assert.Len(t, all, maxTxnEntries+10)
}

func TestDiffAndReset(t *testing.T) {
	idx, w := setupIndex(t)
	ctx := context.Background()

	writeFile(t, w, "nz/auckland/a.laz", "alpha")
	writeFile(t, w, "nz/auckland/b.laz", "bravo")
	writeFile(t, w, "nz/other/c.laz", "charlie")

	deltas, err := idx.Diff(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, map[string]FileStatus{
		"nz/auckland/a.laz": Added,
		"nz/auckland/b.laz": Added,
		"nz/other/c.laz":    Added,
	}, paths(deltas), "the metadata directory is never part of the diff")

	require.NoError(t, idx.Reset(ctx, w, "nz/auckland"))
	deltas, err = idx.Diff(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, map[string]FileStatus{"nz/other/c.laz": Added}, paths(deltas))

	deltas, err = idx.Diff(ctx, w, "nz/auckland")
	require.NoError(t, err)
	assert.Empty(t, deltas)

	writeFile(t, w, "nz/auckland/a.laz", "alpha, changed")
	require.NoError(t, os.Remove(w.abs("nz/auckland/b.laz")))

	deltas, err = idx.Diff(ctx, w, "nz/auckland", "nz/auckland/a.laz")
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, Modified, deltas[0].Status)
	require.NotNil(t, deltas[0].Old)
	require.NotNil(t, deltas[0].New)
	assert.NotEqual(t, deltas[0].Old.OID, deltas[0].New.OID)
	assert.Equal(t, int64(len("alpha, changed")), deltas[0].New.Size)
	assert.Equal(t, Deleted, deltas[1].Status)
	assert.Nil(t, deltas[1].New)

	require.NoError(t, idx.Reset(ctx, w, "nz/auckland/a.laz", "nz/auckland/b.laz"))
	deltas, err = idx.Diff(ctx, w, "nz/auckland")
	require.NoError(t, err)
	assert.Empty(t, deltas)

	_, ok, err := idx.Get("nz/auckland/b.laz")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idx.Reset(ctx, w))
	deltas, err = idx.Diff(ctx, w, "nz/other")
	require.NoError(t, err)
	assert.Len(t, deltas, 1, "reset with no path is a no-op")
}

func TestDiffRefreshesStat(t *testing.T) {
	idx, w := setupIndex(t, RacyWindow(0))
	ctx := context.Background()

	writeFile(t, w, "ds/a.laz", "alpha")
	require.NoError(t, idx.Reset(ctx, w, "ds"))

	before, ok, err := idx.Get("ds/a.laz")
	require.NoError(t, err)
	require.True(t, ok)

	// same content, new mtime
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(w.abs("ds/a.laz"), later, later))

	deltas, err := idx.Diff(ctx, w, "ds")
	require.NoError(t, err)
	assert.Empty(t, deltas)

	after, ok, err := idx.Get("ds/a.laz")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before.OID, after.OID)
	assert.NotEqual(t, before.Mtime, after.Mtime)
}

func TestNormalizeScopes(t *testing.T) {
	assert.Equal(t, []string{""}, normalizeScopes(nil))
	assert.Equal(t, []string{""}, normalizeScopes([]string{".", "a/b"}))
	assert.Equal(t, []string{"a", "ab"}, normalizeScopes([]string{"a/b/", "ab", "/a"}))
}

func TestFileStatus(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "unknown", FileStatus(0).String())
}
