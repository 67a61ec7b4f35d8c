package workdir

import (
	"context"

	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/index"
	"github.com/oneconcern/tilekeeper/pkg/model"
)

// resetIndexForDatasets brings the index entries of the files of some datasets up to date
// with the working copy, restricted to the tiles selected by the filter.
//
// Only files which differ from their entry are rewritten.
func (w *WorkingCopy) resetIndexForDatasets(ctx context.Context, idx *index.Index, datasetPaths []string, filter model.RepoKeyFilter) error {
	if len(datasetPaths) == 0 {
		return nil
	}
	deltas, err := idx.Diff(ctx, w.workdir(), datasetPaths...)
	if err != nil {
		return err
	}
	changed := make([]string, 0, len(deltas))
	for _, fd := range deltas {
		if !filter.MatchAll() {
			dsPath, tileName, ok := datasetOf(datasetPaths, fd.Path)
			if !ok || !filter.MatchesTile(dsPath, tileName) {
				continue
			}
		}
		changed = append(changed, fd.Path)
	}
	return w.resetIndexForFiles(ctx, idx, changed...)
}

// resetIndexForFiles rewrites the index entries of some files or directories from the working copy.
//
// This is only bookkeeping: no tile content is stored anywhere.
func (w *WorkingCopy) resetIndexForFiles(ctx context.Context, idx *index.Index, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	w.l.Debug("resetting index entries", zap.Int("paths", len(paths)))
	return idx.Reset(ctx, w.workdir(), paths...)
}

// SoftResetAfterCommit records a newly committed tree, without touching the working copy.
//
// The index entries of the tiles selected by markAsClean are brought up to date, so that the
// committed changes no longer show as uncommitted.
func (w *WorkingCopy) SoftResetAfterCommit(ctx context.Context, tree model.TreeID, markAsClean model.RepoKeyFilter) error {
	idx, table, err := w.stores(ctx)
	if err != nil {
		return err
	}
	previous, err := table.Tree(ctx)
	if err != nil {
		return err
	}
	datasets, err := w.trees.Datasets(ctx, tree, markAsClean)
	if err != nil {
		return err
	}
	// datasets removed by the commit
	removed, err := w.trees.Datasets(ctx, previous, markAsClean)
	if err != nil {
		return err
	}
	for p, ds := range removed {
		if _, ok := datasets[p]; !ok {
			datasets[p] = ds
		}
	}
	if err = w.resetIndexForDatasets(ctx, idx, datasets.Paths(), markAsClean); err != nil {
		return err
	}
	return table.SetTree(ctx, tree)
}
