package model

import (
	"testing"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchAll(t *testing.T) {
	assert.True(t, MatchAll.MatchAll())
	assert.True(t, MatchAll.MatchesDataset("any/where"))
	assert.True(t, MatchAll.MatchesTile("any/where", "tile.laz"))
	assert.True(t, MatchAll.Dataset("x").MatchAll())

	var zero RepoKeyFilter
	assert.False(t, zero.MatchesDataset("x"))
	assert.True(t, zero.Dataset("x").IsEmpty())
}

func TestParseRepoKeyFilter(t *testing.T) {
	t.Run("no args means everything", func(t *testing.T) {
		f, err := ParseRepoKeyFilter(nil)
		require.NoError(t, err)
		assert.True(t, f.MatchAll())
	})

	t.Run("whole dataset and single tiles", func(t *testing.T) {
		f, err := ParseRepoKeyFilter([]string{"auckland", "wellington:w-01.laz", "wellington:w-02.laz"})
		require.NoError(t, err)
		require.False(t, f.MatchAll())

		assert.True(t, f.Dataset("auckland").MatchAll())
		assert.True(t, f.MatchesTile("auckland", "anything.laz"))

		wf := f.Dataset("wellington")
		assert.False(t, wf.MatchAll())
		assert.True(t, wf.Matches("w-01.laz"))
		assert.True(t, wf.Matches("w-02.laz"))
		assert.False(t, wf.Matches("w-03.laz"))

		assert.False(t, f.MatchesDataset("christchurch"))
		assert.Equal(t, "auckland wellington:w-01.laz,w-02.laz", f.String())
	})

	t.Run("patterns", func(t *testing.T) {
		f, err := ParseRepoKeyFilter([]string{"nz/**", "au/sydney:*.copc.laz"})
		require.NoError(t, err)

		assert.True(t, f.Dataset("nz/auckland").MatchAll())
		assert.True(t, f.Dataset("nz/south/dunedin").MatchAll())
		assert.True(t, f.MatchesTile("au/sydney", "a.copc.laz"))
		assert.False(t, f.MatchesTile("au/sydney", "a.laz"))
		assert.False(t, f.MatchesDataset("au/perth"))
	})

	t.Run("whole dataset wins over tiles", func(t *testing.T) {
		f, err := ParseRepoKeyFilter([]string{"ds:a.laz", "ds"})
		require.NoError(t, err)
		assert.True(t, f.Dataset("ds").MatchAll())
	})

	for _, bad := range []string{":tile", "ds:", "ds[:x", "ds:[a"} {
		_, err := ParseRepoKeyFilter([]string{bad})
		require.Errorf(t, err, "expected %q to be rejected", bad)
		assert.True(t, errors.Is(err, ErrInvalidFilter))
	}
}

func TestFilterDatasets(t *testing.T) {
	ds := Datasets{}
	ds.Add(NewDataset("a", Tile{Name: "1.laz", OID: "sha256:1"}, Tile{Name: "2.laz", OID: "sha256:2"}))
	ds.Add(NewDataset("b", Tile{Name: "3.laz", OID: "sha256:3"}))

	assert.Equal(t, ds, MatchAll.Filter(ds))

	f := NewRepoKeyFilter().Include("a", TileFilter("2.laz"))
	filtered := f.Filter(ds)
	require.Len(t, filtered, 1)
	assert.Equal(t, []string{"2.laz"}, filtered["a"].TileNames())
	assert.Len(t, ds["a"].Tiles, 2, "source must not be modified")
}
