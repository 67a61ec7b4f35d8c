// Package workdir implements the file system working copy.
//
// Tiles are materialized at <root>/<dataset path>/<tile name>. Two files in the metadata
// directory track the working copy: the dirty-tracking index, and the state table recording
// which tree is checked out. Both exist together, or the working copy is corrupt.
package workdir

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/index"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/state"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

// Type of this working copy part
const Type = "filesystem"

var _ workingcopy.Part = &WorkingCopy{}

// WorkingCopy is the file system working copy
type WorkingCopy struct {
	root    string
	metaDir string
	fs      afero.Fs
	l       *zap.Logger

	trees   workingcopy.TreeReader
	tiles   workingcopy.TileStore
	fetcher workingcopy.Fetcher

	indexOpts []index.Option
	idx       *index.Index
	state     *state.Table
}

// New file system working copy rooted at some directory.
//
// Nothing is created on disk: see Create.
func New(root string, opts ...Option) (*WorkingCopy, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	w := &WorkingCopy{
		root:    abs,
		metaDir: model.MetadataDir,
		fs:      afero.NewOsFs(),
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(w)
	}
	return w, nil
}

// Type of working copy
func (w *WorkingCopy) Type() string {
	return Type
}

func (w *WorkingCopy) String() string {
	return w.root
}

// Root directory of the working copy
func (w *WorkingCopy) Root() string {
	return w.root
}

// IndexPath is the location of the dirty-tracking index
func (w *WorkingCopy) IndexPath() string {
	return filepath.Join(w.root, w.metaDir, model.IndexDir)
}

// StatePath is the location of the state table
func (w *WorkingCopy) StatePath() string {
	return filepath.Join(w.root, w.metaDir, model.StateFile)
}

func (w *WorkingCopy) workdir() index.Workdir {
	return index.Workdir{Fs: w.fs, Root: w.root, Exclude: []string{w.metaDir}}
}

func (w *WorkingCopy) rel(pth string) string {
	r, err := filepath.Rel(w.root, pth)
	if err != nil {
		return pth
	}
	return filepath.ToSlash(r)
}

// Status tells if both the index and the state table exist
func (w *WorkingCopy) Status(_ context.Context) (workingcopy.Status, error) {
	osfs := afero.NewOsFs()
	hasIndex := index.Exists(osfs, w.IndexPath())
	hasState := state.Exists(osfs, w.StatePath())
	switch {
	case hasIndex && hasState:
		return workingcopy.Created, nil
	case hasIndex || hasState:
		return workingcopy.PartiallyCreated, nil
	default:
		return workingcopy.Uncreated, nil
	}
}

// CheckValidState fails when the working copy is partially created, naming the missing file
func (w *WorkingCopy) CheckValidState(ctx context.Context) error {
	st, err := w.Status(ctx)
	if err != nil {
		return err
	}
	if st != workingcopy.PartiallyCreated {
		return nil
	}
	missing := w.IndexPath()
	if !state.Exists(afero.NewOsFs(), w.StatePath()) {
		missing = w.StatePath()
	}
	return errors.New(fmt.Sprintf("File system working copy is corrupt - %s is missing", w.rel(missing))).Wrap(status.ErrCorrupt)
}

// Create an empty index and state table
func (w *WorkingCopy) Create(ctx context.Context) error {
	st, err := w.Status(ctx)
	if err != nil {
		return err
	}
	switch st {
	case workingcopy.Created:
		return errors.New("file system working copy already exists at " + w.root).Wrap(status.ErrAlreadyExists)
	case workingcopy.PartiallyCreated:
		return w.CheckValidState(ctx)
	}

	w.l.Info("creating file system working copy", zap.String("root", w.root))
	idx, err := index.Create(w.IndexPath(), w.indexOptions()...)
	if err != nil {
		return err
	}
	table, err := state.Create(ctx, w.StatePath(), state.Logger(w.l))
	if err != nil {
		return multierr.Append(err, idx.Close())
	}
	w.idx, w.state = idx, table
	return nil
}

func (w *WorkingCopy) indexOptions() []index.Option {
	return append([]index.Option{index.Logger(w.l)}, w.indexOpts...)
}

// stores opens the index and state table, once
func (w *WorkingCopy) stores(ctx context.Context) (*index.Index, *state.Table, error) {
	if w.idx != nil && w.state != nil {
		return w.idx, w.state, nil
	}
	if err := w.CheckValidState(ctx); err != nil {
		return nil, nil, err
	}
	st, err := w.Status(ctx)
	if err != nil {
		return nil, nil, err
	}
	if st != workingcopy.Created {
		return nil, nil, errors.New("no file system working copy at " + w.root).Wrap(status.ErrNotCreated)
	}

	idx, err := index.Open(w.IndexPath(), w.indexOptions()...)
	if err != nil {
		return nil, nil, err
	}
	table, err := state.Open(w.StatePath(), state.Logger(w.l))
	if err != nil {
		return nil, nil, multierr.Append(err, idx.Close())
	}
	w.idx, w.state = idx, table
	return idx, table, nil
}

// Tree currently checked out
func (w *WorkingCopy) Tree(ctx context.Context) (model.TreeID, error) {
	_, table, err := w.stores(ctx)
	if err != nil {
		return "", err
	}
	return table.Tree(ctx)
}

// UpdateStateTree records the tree the working copy represents
func (w *WorkingCopy) UpdateStateTree(ctx context.Context, tree model.TreeID) error {
	_, table, err := w.stores(ctx)
	if err != nil {
		return err
	}
	return table.SetTree(ctx, tree)
}

// StateValue reads a value from the state table
func (w *WorkingCopy) StateValue(ctx context.Context, table, key string) (string, bool, error) {
	_, st, err := w.stores(ctx)
	if err != nil {
		return "", false, err
	}
	return st.Value(ctx, table, key)
}

// Delete the working copy: all datasets of the checked out tree, the index and the state table.
//
// Files which are not part of any dataset are left untouched.
func (w *WorkingCopy) Delete(ctx context.Context) error {
	st, err := w.Status(ctx)
	if err != nil {
		return err
	}
	if st == workingcopy.Created {
		tree, err := w.Tree(ctx)
		if err != nil {
			return err
		}
		if w.trees != nil && !tree.IsEmpty() {
			datasets, err := w.trees.Datasets(ctx, tree, model.MatchAll)
			if err != nil {
				return err
			}
			if err = w.removeDatasets(datasets.Paths()); err != nil {
				return err
			}
		}
	}
	if err = w.Close(); err != nil {
		return err
	}
	w.l.Info("deleting file system working copy", zap.String("root", w.root))
	osfs := afero.NewOsFs()
	return multierr.Combine(
		osfs.RemoveAll(w.IndexPath()),
		osfs.RemoveAll(w.StatePath()),
	)
}

// Close the index and state table
func (w *WorkingCopy) Close() error {
	var err error
	if w.idx != nil {
		err = multierr.Append(err, w.idx.Close())
		w.idx = nil
	}
	if w.state != nil {
		err = multierr.Append(err, w.state.Close())
		w.state = nil
	}
	return err
}
