// Package commit records the changes of the file system working copy as a new commit.
package commit

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/diff"
	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/repo"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

var (
	// ErrNothingToCommit indicates a working copy without any change
	ErrNothingToCommit = errors.New("no changes to commit")

	// ErrTreeMismatch indicates a working copy which is not based on HEAD
	ErrTreeMismatch = errors.New("working copy is not based on HEAD").WithCode(status.ExitInvalidOperation)
)

// Result of a commit
type Result struct {
	Commit model.CommitID
	Tree   model.TreeID
	Diff   diff.RepoDiff
}

// FromWorkingCopy commits the changes of the datasets selected by the filter.
//
// Changed tiles are stored in the local tile cache. Once committed, the working copy records the
// new tree and the committed tiles no longer show as changed.
func FromWorkingCopy(ctx context.Context, r *repo.Repo, message string, author model.Contributor, filter model.RepoKeyFilter) (*Result, error) {
	wc, err := r.WorkingCopy(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = wc.Close()
	}()
	fs, ok := repo.FileSystemPart(wc)
	if !ok {
		return nil, errors.New("no file system working copy").Wrap(status.ErrNotCreated)
	}

	head, err := r.Objects().Head(ctx)
	if err != nil {
		return nil, err
	}
	headTree, err := r.Objects().HeadTree(ctx)
	if err != nil {
		return nil, err
	}
	base, err := fs.Tree(ctx)
	if err != nil {
		return nil, err
	}
	if base != headTree {
		return nil, errors.New(fmt.Sprintf("working copy is at tree %s, HEAD is at tree %s: check out HEAD first", base, headTree)).Wrap(ErrTreeMismatch)
	}

	changes, err := fs.Diff(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, ErrNothingToCommit
	}

	datasets, err := r.Objects().Datasets(ctx, base, model.MatchAll)
	if err != nil {
		return nil, err
	}
	osFs := afero.NewOsFs()
	for _, dsPath := range changes.Paths() {
		ds := datasets[dsPath].Clone()
		for _, d := range changes[dsPath].Sorted() {
			if d.Type == diff.Delete || d.IsRename() {
				delete(ds.Tiles, d.OldKey)
			}
			if d.Type == diff.Insert || d.Type == diff.Update {
				pth := filepath.Join(fs.Root(), filepath.FromSlash(path.Join(dsPath, d.NewKey)))
				tile, err := r.Tiles().PutFile(ctx, osFs, pth)
				if err != nil {
					return nil, err
				}
				tile.Name = d.NewKey
				ds.Tiles[d.NewKey] = tile
			}
		}
		if len(ds.Tiles) == 0 {
			delete(datasets, dsPath)
			continue
		}
		datasets[dsPath] = ds
	}

	res := &Result{Diff: changes}
	if res.Tree, err = r.Objects().WriteTree(ctx, datasets); err != nil {
		return nil, err
	}
	opts := []model.CommitOption{model.Message(message), model.CommitContributor(author)}
	if head != "" {
		opts = append(opts, model.Parents(head))
	}
	if res.Commit, err = r.Objects().WriteCommit(ctx, res.Tree, opts...); err != nil {
		return nil, err
	}
	if err = r.Objects().SetHead(ctx, res.Commit); err != nil {
		return nil, err
	}
	if err = fs.SoftResetAfterCommit(ctx, res.Tree, filter); err != nil {
		return nil, err
	}

	r.Logger().Info("committed working copy changes",
		zap.String("commit", string(res.Commit)),
		zap.Stringer("tree", res.Tree),
		zap.Int("datasets", len(changes)),
	)
	return res, nil
}
