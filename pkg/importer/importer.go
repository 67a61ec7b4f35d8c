// Package importer brings tile files into a repository as a dataset, and commits them.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/docker/go-units"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/repo"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

var (
	// ErrDatasetExists indicates an import over an existing dataset, without replace or update
	ErrDatasetExists = errors.New("dataset already exists").WithCode(status.ExitInvalidOperation)

	// ErrDirtyWorkingCopy indicates a checkout which would lose uncommitted changes
	ErrDirtyWorkingCopy = errors.New("working copy has uncommitted changes").WithCode(status.ExitInvalidOperation)
)

// Options for an import
type Options struct {
	// DatasetPath is the path of the dataset in the repository, e.g. nz/auckland
	DatasetPath string

	// Sources are tile files, or directories holding tile files
	Sources []string

	Message string
	Author  model.Contributor

	// Replace the tiles of an existing dataset with the sources
	Replace bool

	// Update an existing dataset: sources are added, or replace tiles with the same name
	Update bool

	// Delete tiles from an existing dataset
	Delete []string

	// Workers is the number of files stored concurrently. It defaults to the number of CPUs.
	Workers int

	// Checkout the new commit in the file system working copy, creating it if needed
	Checkout bool
}

// Result of an import
type Result struct {
	Commit  model.CommitID
	Tree    model.TreeID
	Dataset *model.Dataset

	// Imported is the number of source files stored
	Imported int
	// Bytes is the total size of the stored source files
	Bytes int64
}

func (o Options) validate() error {
	if strings.TrimSpace(model.CleanDatasetPath(o.DatasetPath)) == "" {
		return errors.New("a dataset path is required").Wrap(status.ErrUsage)
	}
	modes := 0
	for _, set := range []bool{o.Replace, o.Update, len(o.Delete) > 0} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return errors.New("replace, update and delete are mutually exclusive").Wrap(status.ErrUsage)
	}
	if len(o.Delete) > 0 && len(o.Sources) > 0 {
		return errors.New("no source may be imported when deleting tiles").Wrap(status.ErrUsage)
	}
	if len(o.Delete) == 0 && len(o.Sources) == 0 {
		return errors.New("nothing to import").Wrap(status.ErrUsage)
	}
	return nil
}

// Import tiles into a dataset and commit the result on top of HEAD
func Import(ctx context.Context, r *repo.Repo, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	l := r.Logger()
	dsPath := model.CleanDatasetPath(opts.DatasetPath)

	files, err := listSources(opts.Sources)
	if err != nil {
		return nil, err
	}

	head, err := r.Objects().Head(ctx)
	if err != nil {
		return nil, err
	}
	baseTree, err := r.Objects().HeadTree(ctx)
	if err != nil {
		return nil, err
	}
	datasets, err := r.Objects().Datasets(ctx, baseTree, model.MatchAll)
	if err != nil {
		return nil, err
	}
	existing, exists := datasets[dsPath]
	if exists && !opts.Replace && !opts.Update && len(opts.Delete) == 0 {
		return nil, errors.New(fmt.Sprintf("dataset %s already exists: replace or update it", dsPath)).Wrap(ErrDatasetExists)
	}
	if !exists && len(opts.Delete) > 0 {
		return nil, errors.New(fmt.Sprintf("cannot delete tiles from dataset %s: no such dataset", dsPath)).Wrap(status.ErrUsage)
	}

	res := &Result{}
	tiles, err := storeTiles(ctx, r, files, opts.Workers, res)
	if err != nil {
		return nil, err
	}

	var ds *model.Dataset
	switch {
	case opts.Update && exists:
		ds = existing.Clone()
		for _, t := range tiles {
			ds.Tiles[t.Name] = t
		}
	case len(opts.Delete) > 0:
		ds = existing.Clone()
		for _, name := range opts.Delete {
			if _, ok := ds.Tiles[name]; !ok {
				return nil, errors.New(fmt.Sprintf("cannot delete tile %s: not in dataset %s", name, dsPath)).Wrap(status.ErrUsage)
			}
			delete(ds.Tiles, name)
		}
	default:
		ds = model.NewDataset(dsPath, tiles...)
	}

	if len(ds.Tiles) == 0 {
		delete(datasets, dsPath)
	} else {
		datasets.Add(ds)
	}
	res.Dataset = ds

	if res.Tree, err = r.Objects().WriteTree(ctx, datasets); err != nil {
		return nil, err
	}
	msg := opts.Message
	if msg == "" {
		msg = "Import to " + dsPath
	}
	commitOpts := []model.CommitOption{model.Message(msg), model.CommitContributor(opts.Author)}
	if head != "" {
		commitOpts = append(commitOpts, model.Parents(head))
	}
	if res.Commit, err = r.Objects().WriteCommit(ctx, res.Tree, commitOpts...); err != nil {
		return nil, err
	}

	if opts.Checkout {
		if err = checkout(ctx, r, res.Tree); err != nil {
			return nil, err
		}
	}
	if err = r.Objects().SetHead(ctx, res.Commit); err != nil {
		return nil, err
	}

	l.Info("imported dataset",
		zap.String("dataset", dsPath),
		zap.Int("files", res.Imported),
		zap.String("size", units.HumanSize(float64(res.Bytes))),
		zap.Int("tiles", len(ds.Tiles)),
		zap.Stringer("tree", res.Tree),
		zap.String("commit", string(res.Commit)),
	)
	return res, nil
}

// listSources expands directories into the regular files they hold
func listSources(sources []string) ([]string, error) {
	var files []string
	seen := make(map[string]string, len(sources))
	add := func(pth string) error {
		name := filepath.Base(pth)
		if other, ok := seen[name]; ok {
			return errors.New(fmt.Sprintf("tile %s is imported twice, from %s and %s", name, other, pth)).Wrap(status.ErrUsage)
		}
		seen[name] = pth
		files = append(files, pth)
		return nil
	}

	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, errors.New("cannot import " + src + ": " + err.Error()).Wrap(status.ErrUsage)
		}
		if !info.IsDir() {
			if err = add(src); err != nil {
				return nil, err
			}
			continue
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if err = add(filepath.Join(src, e.Name())); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

// storeTiles stores files in the local tile cache concurrently
func storeTiles(ctx context.Context, r *repo.Repo, files []string, workers int, res *Result) ([]model.Tile, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	tiles := make([]model.Tile, len(files))
	var size int64

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	osFs := afero.NewOsFs()
	for i, f := range files {
		i, f := i, f
		grp.Go(func() error {
			t, err := r.Tiles().PutFile(gctx, osFs, f)
			if err != nil {
				return errors.New("storing " + f + ": " + err.Error())
			}
			tiles[i] = t
			atomic.AddInt64(&size, t.Size)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].Name < tiles[j].Name })
	res.Imported = len(tiles)
	res.Bytes = size
	return tiles, nil
}

// checkout resets the file system working copy to the imported tree
func checkout(ctx context.Context, r *repo.Repo, tree model.TreeID) error {
	fs, err := r.Workdir(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = fs.Close()
	}()

	st, err := fs.Status(ctx)
	if err != nil {
		return err
	}
	switch st {
	case workingcopy.Uncreated:
		if err = fs.Create(ctx); err != nil {
			return err
		}
	case workingcopy.PartiallyCreated:
		return fs.CheckValidState(ctx)
	default:
		dirty, err := fs.IsDirty(ctx)
		if err != nil {
			return err
		}
		if dirty {
			return errors.New("cannot check out the imported dataset: commit or discard changes first").Wrap(ErrDirtyWorkingCopy)
		}
	}
	return fs.Reset(ctx, tree)
}
