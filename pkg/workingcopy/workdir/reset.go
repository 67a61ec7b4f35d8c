package workdir

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/diff"
	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/index"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

// Reset the working copy to a tree. The empty tree empties the working copy.
//
// Tiles are fetched first, so that a failure to fetch leaves the working copy untouched.
// Failures while writing to the file system are not rolled back.
//
// Resetting with RewriteFull requires a match-all filter and discarding changes.
func (w *WorkingCopy) Reset(ctx context.Context, target model.TreeID, opts ...workingcopy.ResetOption) error {
	o := workingcopy.ApplyResetOptions(opts...)
	if o.RewriteFull && (!o.KeyFilter.MatchAll() || o.TrackChangesAsDirty) {
		panic("workdir: rewrite full needs a match-all filter and does not track changes as dirty")
	}
	if w.trees == nil || w.tiles == nil {
		panic("workdir: reset needs a tree reader and a tile store")
	}

	idx, table, err := w.stores(ctx)
	if err != nil {
		return err
	}

	targetDatasets, err := w.trees.Datasets(ctx, target, o.KeyFilter)
	if err != nil {
		return err
	}
	if w.fetcher != nil {
		if err = w.fetcher.Fetch(ctx, targetDatasets); err != nil {
			return err
		}
	}

	baseTree, err := table.Tree(ctx)
	if err != nil {
		return err
	}
	baseDatasets := targetDatasets
	if baseTree != target {
		if baseDatasets, err = w.trees.Datasets(ctx, baseTree, o.KeyFilter); err != nil {
			return err
		}
	}

	var inserts, deletes, updates []string
	for p := range targetDatasets {
		if _, ok := baseDatasets[p]; ok {
			updates = append(updates, p)
		} else {
			inserts = append(inserts, p)
		}
	}
	for p := range baseDatasets {
		if _, ok := targetDatasets[p]; !ok {
			deletes = append(deletes, p)
		}
	}
	if o.RewriteFull {
		inserts = append(inserts, updates...)
		deletes = append(deletes, updates...)
		updates = nil
	}
	sort.Strings(inserts)
	sort.Strings(deletes)
	sort.Strings(updates)

	if structural := append(append([]string(nil), inserts...), deletes...); len(structural) > 0 {
		if !o.KeyFilter.MatchAll() {
			return errors.New(fmt.Sprintf(
				"Sorry, this operation is not supported when checking out a subset of the repository: it would add or remove datasets %s",
				strings.Join(structural, ", "),
			)).Wrap(status.ErrUnsupported)
		}
		if o.TrackChangesAsDirty {
			return errors.New(fmt.Sprintf(
				"Sorry, this operation is not supported when tracking changes as dirty: it would add or remove datasets %s",
				strings.Join(structural, ", "),
			)).Wrap(status.ErrUnsupported)
		}
	}

	w.l.Info("resetting file system working copy",
		zap.Stringer("base", baseTree),
		zap.Stringer("target", target),
		zap.Int("inserts", len(inserts)),
		zap.Int("deletes", len(deletes)),
		zap.Int("updates", len(updates)),
	)

	if len(deletes) > 0 {
		if err = w.removeDatasets(deletes); err != nil {
			return err
		}
		if err = w.resetIndexForFiles(ctx, idx, deletes...); err != nil {
			return err
		}
	}

	if len(inserts) > 0 {
		for _, p := range inserts {
			if err = w.writeDataset(targetDatasets[p], o.Warnings); err != nil {
				return err
			}
		}
		if err = w.resetIndexForFiles(ctx, idx, inserts...); err != nil {
			return err
		}
	}

	if len(updates) > 0 {
		cache, err := w.NewDiffCache(ctx, baseTree)
		if err != nil {
			return err
		}
		for _, p := range updates {
			dsFilter := o.KeyFilter.Dataset(p)
			wcDiff, err := cache.DatasetDiff(ctx, baseDatasets[p], dsFilter)
			if err != nil {
				return err
			}
			// committed target -> committed base -> working copy, undone
			toTarget := diff.Concat(diff.Datasets(targetDatasets[p], baseDatasets[p], dsFilter), wcDiff).Invert()
			if err = w.updateDataset(ctx, idx, p, toTarget, dsFilter, o); err != nil {
				return err
			}
		}
	}

	if !o.TrackChangesAsDirty {
		return table.SetTree(ctx, target)
	}
	return nil
}

// writeDataset materializes all tiles of a dataset
func (w *WorkingCopy) writeDataset(ds *model.Dataset, warn func(error)) error {
	dir, err := w.datasetDir(ds.Path)
	if err != nil {
		return err
	}
	if err = w.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, name := range ds.TileNames() {
		if err = w.writeTile(dir, ds, ds.Tiles[name], warn); err != nil {
			return err
		}
	}
	return nil
}

// writeTile copies the content of a tile from the local tile store.
//
// A tile missing from the store is skipped with a warning.
func (w *WorkingCopy) writeTile(dir string, ds *model.Dataset, tile model.Tile, warn func(error)) error {
	dest, err := w.tilePath(dir, tile.Name)
	if err != nil {
		return err
	}
	if _, ok := w.tiles.LocalPath(tile.OID); !ok {
		tilePath := ds.TilePath(tile.Name)
		w.l.Warn("tile content is missing locally",
			zap.String("dataset", ds.Path),
			zap.String("tile", tile.Name),
			zap.String("oid", tile.OID),
		)
		warn(errors.New(fmt.Sprintf("Couldn't find tile %s locally - skipping...", tilePath)).Wrap(status.ErrMissingLocalContent))
		return nil
	}
	if err = w.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return w.tiles.CopyTo(tile.OID, w.fs, dest)
}

// updateDataset applies a diff to the tiles of a dataset on disk.
//
// Diffs computed by Reset never hold renames: those only come from diffs built by callers.
func (w *WorkingCopy) updateDataset(ctx context.Context, idx *index.Index, datasetPath string, dd diff.DatasetDiff,
	filter model.DatasetKeyFilter, o workingcopy.ResetOptions) error {
	dir, err := w.datasetDir(datasetPath)
	if err != nil {
		return err
	}
	ds := model.NewDataset(datasetPath)

	touched := make([]string, 0, len(dd))
	for _, d := range dd.Sorted() {
		if d.Type == diff.Delete || d.IsRename() {
			old, err := w.tilePath(dir, d.OldKey)
			if err != nil {
				return err
			}
			if err = w.fs.Remove(old); err != nil && !isNotExist(err) {
				return err
			}
			touched = append(touched, path.Join(ds.Path, d.OldKey))
		}
		if d.Type == diff.Insert || d.Type == diff.Update {
			if err = w.fs.MkdirAll(dir, 0755); err != nil {
				return err
			}
			if err = w.writeTile(dir, ds, *d.NewValue, o.Warnings); err != nil {
				return err
			}
			touched = append(touched, path.Join(ds.Path, d.NewKey))
		}
	}
	w.l.Debug("updated dataset", zap.String("dataset", datasetPath), zap.Int("changes", len(dd)))

	if o.TrackChangesAsDirty {
		return nil
	}
	if filter.MatchAll() {
		return w.resetIndexForDatasets(ctx, idx, []string{datasetPath}, model.MatchAll)
	}
	return w.resetIndexForFiles(ctx, idx, touched...)
}
