package diff

import (
	"testing"

	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tile(name, oid string) model.Tile {
	return model.Tile{Name: name, OID: "sha256:" + oid, Size: int64(len(oid))}
}

func TestDatasets(t *testing.T) {
	old := model.NewDataset("ds", tile("a", "1"), tile("b", "2"), tile("c", "3"))
	updated := model.NewDataset("ds", tile("a", "1"), tile("b", "22"), tile("d", "4"))

	dd := Datasets(old, updated, model.MatchAllTiles)
	require.Len(t, dd, 3)
	assert.Equal(t, Update, dd["b"].Type)
	assert.Equal(t, "sha256:2", dd["b"].OldValue.OID)
	assert.Equal(t, "sha256:22", dd["b"].NewValue.OID)
	assert.Equal(t, Delete, dd["c"].Type)
	assert.Nil(t, dd["c"].NewValue)
	assert.Equal(t, Insert, dd["d"].Type)
	assert.Nil(t, dd["d"].OldValue)

	filtered := Datasets(old, updated, model.TileFilter("b", "d"))
	assert.Equal(t, []string{"b", "d"}, filtered.Keys())

	assert.Empty(t, Datasets(old, old, model.MatchAllTiles))
	assert.Len(t, Datasets(nil, updated, model.MatchAllTiles), 3)
	assert.Len(t, Datasets(old, nil, model.MatchAllTiles), 3)
}

func TestInvert(t *testing.T) {
	old := model.NewDataset("ds", tile("a", "1"), tile("b", "2"))
	updated := model.NewDataset("ds", tile("b", "22"), tile("c", "3"))

	dd := Datasets(old, updated, model.MatchAllTiles)
	inv := dd.Invert()

	assert.Equal(t, Datasets(updated, old, model.MatchAllTiles), inv)
	assert.Equal(t, dd, inv.Invert())
}

func TestInvertRename(t *testing.T) {
	d := UpdateDelta(tile("old.laz", "1"), tile("new.laz", "1"))
	require.True(t, d.IsRename())
	assert.False(t, d.IsNoop())
	assert.Equal(t, "R old.laz -> new.laz", d.String())

	dd := DatasetDiff{}
	dd.Add(d)
	require.Contains(t, dd, "new.laz")

	inv := dd.Invert()
	require.Contains(t, inv, "old.laz")
	assert.Equal(t, "new.laz", inv["old.laz"].OldKey)
	assert.True(t, inv["old.laz"].IsRename())
}

func TestPrune(t *testing.T) {
	dd := DatasetDiff{}
	dd.Add(UpdateDelta(tile("a", "1"), tile("a", "1")))
	dd.Add(UpdateDelta(tile("b", "1"), tile("b", "2")))
	dd.Add(InsertDelta(tile("c", "3")))

	assert.Equal(t, []string{"b", "c"}, dd.Prune().Keys())

	rd := RepoDiff{
		"empty": DatasetDiff{"a": UpdateDelta(tile("a", "1"), tile("a", "1"))},
		"full":  dd,
	}
	assert.Equal(t, []string{"full"}, rd.Prune().Paths())
}

func TestConcat(t *testing.T) {
	x := model.NewDataset("ds", tile("a", "1"), tile("b", "2"), tile("c", "3"), tile("e", "5"))
	y := model.NewDataset("ds", tile("a", "11"), tile("c", "3"), tile("d", "4"), tile("e", "5"))
	z := model.NewDataset("ds", tile("a", "1"), tile("b", "222"), tile("d", "44"), tile("f", "6"))

	xy := Datasets(x, y, model.MatchAllTiles)
	yz := Datasets(y, z, model.MatchAllTiles)

	assert.Equal(t, Datasets(x, z, model.MatchAllTiles), Concat(xy, yz))
	assert.Equal(t, Datasets(z, x, model.MatchAllTiles), Concat(yz.Invert(), xy.Invert()))

	assert.Equal(t, xy, Concat(xy, DatasetDiff{}))
	assert.Equal(t, yz, Concat(DatasetDiff{}, yz))
}

func TestCounts(t *testing.T) {
	dd := DatasetDiff{}
	dd.Add(InsertDelta(tile("a", "1")))
	dd.Add(InsertDelta(tile("b", "1")))
	dd.Add(DeleteDelta(tile("c", "1")))

	counts := dd.Counts()
	assert.Equal(t, 2, counts[Insert])
	assert.Equal(t, 1, counts[Delete])
	assert.Equal(t, 0, counts[Update])
	assert.Equal(t, "A", Insert.String())
}

func TestFromValues(t *testing.T) {
	_, ok := FromValues(nil, nil)
	assert.False(t, ok)

	a := tile("a", "1")
	d, ok := FromValues(nil, &a)
	require.True(t, ok)
	assert.Equal(t, Insert, d.Type)

	d, ok = FromValues(&a, nil)
	require.True(t, ok)
	assert.Equal(t, Delete, d.Type)
	assert.Equal(t, "a", d.Key())
}
