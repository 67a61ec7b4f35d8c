package commit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/pkg/diff"
	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/importer"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/repo"
)

var author = model.Contributor{Name: "Tile Keeper", Email: "tiles@example.com"}

// setupRepo imports two datasets and checks them out
func setupRepo(t *testing.T) *repo.Repo {
	t.Helper()
	ctx := context.Background()
	r, err := repo.Init(ctx, t.TempDir(), repo.Config{})
	require.NoError(t, err)

	for dsPath, tiles := range map[string]map[string]string{
		"nz/auckland":   {"a.laz": "alpha", "b.laz": "bravo"},
		"nz/wellington": {"w.laz": "whiskey"},
	} {
		src := t.TempDir()
		for name, content := range tiles {
			require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(content), 0600))
		}
		_, err = importer.Import(ctx, r, importer.Options{DatasetPath: dsPath, Sources: []string{src}, Checkout: true})
		require.NoError(t, err)
	}
	return r
}

func write(t *testing.T, r *repo.Repo, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(r.Root(), filepath.FromSlash(rel)), []byte(content), 0600))
}

func remove(t *testing.T, r *repo.Repo, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(r.Root(), filepath.FromSlash(rel))))
}

func assertClean(t *testing.T, r *repo.Repo) {
	t.Helper()
	ctx := context.Background()
	wc, err := r.WorkingCopy(ctx)
	require.NoError(t, err)
	defer func() { _ = wc.Close() }()
	dirty, err := wc.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestNothingToCommit(t *testing.T) {
	r := setupRepo(t)
	_, err := FromWorkingCopy(context.Background(), r, "nothing", author, model.MatchAll)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNothingToCommit))
}

func TestCommitChanges(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)
	before, err := r.Objects().Head(ctx)
	require.NoError(t, err)

	write(t, r, "nz/auckland/a.laz", "alpha, edited")
	write(t, r, "nz/auckland/c.laz", "charlie")
	remove(t, r, "nz/auckland/b.laz")
	remove(t, r, "nz/wellington/w.laz")

	res, err := FromWorkingCopy(ctx, r, "edit tiles", author, model.MatchAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"nz/auckland", "nz/wellington"}, res.Diff.Paths())
	assert.Equal(t, map[diff.DeltaType]int{diff.Insert: 1, diff.Update: 1, diff.Delete: 1}, res.Diff["nz/auckland"].Counts())

	head, err := r.Objects().Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Commit, head)
	cd, err := r.Objects().ReadCommit(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, []model.CommitID{before}, cd.Parents)
	assert.Equal(t, "edit tiles", cd.Message)

	ds, err := r.Objects().Datasets(ctx, res.Tree, model.MatchAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"nz/auckland"}, ds.Paths(), "a dataset without tiles is removed")
	assert.Equal(t, []string{"a.laz", "c.laz"}, ds["nz/auckland"].TileNames())

	for _, tile := range ds["nz/auckland"].Tiles {
		_, ok := r.Tiles().LocalPath(tile.OID)
		assert.True(t, ok, "committed tile %s is in the cache", tile.Name)
	}

	fs, err := r.Workdir(ctx)
	require.NoError(t, err)
	tree, err := fs.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Tree, tree)
	require.NoError(t, fs.Close())
	assertClean(t, r)
}

func TestCommitPartial(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)

	write(t, r, "nz/auckland/a.laz", "alpha, edited")
	write(t, r, "nz/wellington/w.laz", "whiskey, edited")

	filter := model.NewRepoKeyFilter().Include("nz/auckland", model.MatchAllTiles)
	res, err := FromWorkingCopy(ctx, r, "auckland only", author, filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"nz/auckland"}, res.Diff.Paths())

	fs, err := r.Workdir(ctx)
	require.NoError(t, err)
	defer func() { _ = fs.Close() }()
	remaining, err := fs.Diff(ctx, model.MatchAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"nz/wellington"}, remaining.Paths(), "changes outside of the filter remain uncommitted")
}

func TestCommitRequiresHead(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)

	fs, err := r.Workdir(ctx)
	require.NoError(t, err)
	first, err := r.Objects().ResolveTree(ctx, "HEAD^")
	require.NoError(t, err)
	require.NoError(t, fs.Reset(ctx, first))
	require.NoError(t, fs.Close())

	_, err = FromWorkingCopy(ctx, r, "stale", author, model.MatchAll)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTreeMismatch))
}
