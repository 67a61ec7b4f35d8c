package workdir

import (
	"context"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/diff"
	"github.com/oneconcern/tilekeeper/pkg/index"
	"github.com/oneconcern/tilekeeper/pkg/model"
)

// DiffCache memoizes the comparison of the working copy with its index, for the duration
// of a single operation.
//
// A new cache must be used for each top level operation: the working copy may change
// in between.
type DiffCache struct {
	w    *WorkingCopy
	idx  *index.Index
	tree model.TreeID

	rawOnce sync.Once
	raw     []index.FileDelta
	rawErr  error

	byDatasetOnce sync.Once
	byDataset     map[string][]index.FileDelta
	byDatasetErr  error
}

// NewDiffCache builds a diff cache for the working copy, when the given tree is checked out
func (w *WorkingCopy) NewDiffCache(ctx context.Context, tree model.TreeID) (*DiffCache, error) {
	idx, _, err := w.stores(ctx)
	if err != nil {
		return nil, err
	}
	return &DiffCache{w: w, idx: idx, tree: tree}, nil
}

// RawDiff lists all the files of the working copy which differ from the index
func (c *DiffCache) RawDiff(ctx context.Context) ([]index.FileDelta, error) {
	c.rawOnce.Do(func() {
		c.raw, c.rawErr = c.idx.Diff(ctx, c.w.workdir())
		if c.rawErr == nil {
			c.w.l.Debug("compared working copy with index", zap.Int("changes", len(c.raw)))
		}
	})
	return c.raw, c.rawErr
}

// DeltasByDataset groups the raw diff by the path of the dataset of each file.
//
// Files outside of any dataset of the tree are grouped under the empty path.
func (c *DiffCache) DeltasByDataset(ctx context.Context) (map[string][]index.FileDelta, error) {
	c.byDatasetOnce.Do(func() {
		raw, err := c.RawDiff(ctx)
		if err != nil {
			c.byDatasetErr = err
			return
		}
		var paths []string
		if !c.tree.IsEmpty() && c.w.trees != nil {
			datasets, err := c.w.trees.Datasets(ctx, c.tree, model.MatchAll)
			if err != nil {
				c.byDatasetErr = err
				return
			}
			paths = datasets.Paths()
		}
		c.byDataset = make(map[string][]index.FileDelta)
		for _, fd := range raw {
			p, _ := model.FindDatasetPath(paths, fd.Path)
			c.byDataset[p] = append(c.byDataset[p], fd)
		}
	})
	return c.byDataset, c.byDatasetErr
}

// DatasetDiff computes the differences between a dataset as committed and the working copy.
//
// The dataset is the version of the tree the cache was built for.
func (c *DiffCache) DatasetDiff(ctx context.Context, base *model.Dataset, filter model.DatasetKeyFilter) (diff.DatasetDiff, error) {
	byDataset, err := c.DeltasByDataset(ctx)
	if err != nil {
		return nil, err
	}
	res := make(diff.DatasetDiff)
	prefix := base.Path + "/"
	for _, fd := range byDataset[base.Path] {
		name := strings.TrimPrefix(fd.Path, prefix)
		if !filter.Matches(name) {
			continue
		}
		baseTile, inBase := base.Tile(name)
		switch fd.Status {
		case index.Added:
			res.Add(diff.InsertDelta(tileFromEntry(name, fd.New)))
		case index.Modified:
			if inBase {
				res.Add(diff.UpdateDelta(baseTile, tileFromEntry(name, fd.New)))
			} else {
				res.Add(diff.InsertDelta(tileFromEntry(name, fd.New)))
			}
		case index.Deleted:
			if inBase {
				res.Add(diff.DeleteDelta(baseTile))
			}
		}
	}
	return res, nil
}

func tileFromEntry(name string, e *index.Entry) model.Tile {
	return model.Tile{Name: name, OID: e.OID, Size: e.Size}
}

// Diff computes the uncommitted changes of the datasets selected by the filter.
//
// Datasets without any change are omitted.
func (w *WorkingCopy) Diff(ctx context.Context, filter model.RepoKeyFilter) (diff.RepoDiff, error) {
	tree, err := w.Tree(ctx)
	if err != nil {
		return nil, err
	}
	res := make(diff.RepoDiff)
	if tree.IsEmpty() {
		return res, nil
	}
	cache, err := w.NewDiffCache(ctx, tree)
	if err != nil {
		return nil, err
	}
	datasets, err := w.trees.Datasets(ctx, tree, filter)
	if err != nil {
		return nil, err
	}
	for _, p := range datasets.Paths() {
		dd, err := cache.DatasetDiff(ctx, datasets[p], filter.Dataset(p))
		if err != nil {
			return nil, err
		}
		res[p] = dd
	}
	return res.Prune(), nil
}

// IsDirty is true when some dataset of the checked out tree has uncommitted changes.
//
// A working copy with no tree is clean. Files outside of datasets are ignored.
func (w *WorkingCopy) IsDirty(ctx context.Context) (bool, error) {
	tree, err := w.Tree(ctx)
	if err != nil {
		return false, err
	}
	if tree.IsEmpty() {
		return false, nil
	}
	cache, err := w.NewDiffCache(ctx, tree)
	if err != nil {
		return false, err
	}
	byDataset, err := cache.DeltasByDataset(ctx)
	if err != nil {
		return false, err
	}
	if len(byDataset) == 0 {
		return false, nil
	}
	datasets, err := w.trees.Datasets(ctx, tree, model.MatchAll)
	if err != nil {
		return false, err
	}
	for p := range byDataset {
		ds, ok := datasets[p]
		if !ok {
			continue
		}
		dd, err := cache.DatasetDiff(ctx, ds, model.MatchAllTiles)
		if err != nil {
			return false, err
		}
		if len(dd.Prune()) > 0 {
			w.l.Debug("working copy is dirty", zap.String("dataset", p))
			return true, nil
		}
	}
	return false, nil
}

// datasetOf returns the path of the dataset holding a working copy file, and the tile name
func datasetOf(datasetPaths []string, filePath string) (string, string, bool) {
	p, ok := model.FindDatasetPath(datasetPaths, filePath)
	if !ok {
		return "", "", false
	}
	return p, strings.TrimPrefix(filePath, path.Clean(p)+"/"), true
}
