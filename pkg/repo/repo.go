// Package repo opens tile repositories.
//
// A repository is a directory holding a metadata directory, with trees and commits, tile content,
// the dirty-tracking index and the configuration. The rest of the directory is the file system
// working copy.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/lfs"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/odb"
	"github.com/oneconcern/tilekeeper/pkg/storage"
	"github.com/oneconcern/tilekeeper/pkg/storage/localfs"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/dbserver"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/workdir"
)

var (
	// ErrNotARepo indicates a directory which is not within a repository
	ErrNotARepo = errors.New("not a tilekeeper repository")

	// ErrAlreadyInitialized indicates an attempt to initialize a repository twice
	ErrAlreadyInitialized = errors.New("repository already exists").WithCode(status.ExitInvalidOperation)

	// ErrInvalidConfig indicates a repository configuration which cannot be used
	ErrInvalidConfig = errors.New("invalid repository configuration").WithCode(status.ExitUsage)
)

// Repo is an opened repository
type Repo struct {
	root    string
	meta    string
	config  Config
	workers int
	l       *zap.Logger

	remote string
	// used when neither an option nor the configuration sets a remote
	defaultRemote string

	objects *odb.Store
	tiles   *lfs.Cache

	fetcherOnce sync.Once
	fetcher     *lfs.Fetcher
	fetcherErr  error
}

// Init creates a repository in a directory, which may already hold files
func Init(ctx context.Context, root string, cfg Config, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	meta := filepath.Join(abs, model.MetadataDir)
	if _, err = os.Stat(meta); err == nil {
		return nil, errors.New("a repository already exists at " + abs).Wrap(ErrAlreadyInitialized)
	}
	if err = cfg.validate(abs); err != nil {
		return nil, err
	}
	for _, dir := range []string{model.ObjectsDir, model.LFSObjectsDir} {
		if err = os.MkdirAll(filepath.Join(meta, filepath.FromSlash(dir)), 0755); err != nil {
			return nil, err
		}
	}
	if err = writeConfig(filepath.Join(meta, model.ConfigFile), cfg); err != nil {
		return nil, err
	}
	return Open(ctx, abs, opts...)
}

// Open the repository holding some directory. Parent directories are searched for the metadata directory.
func Open(_ context.Context, dir string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	root, err := findRoot(abs)
	if err != nil {
		return nil, err
	}

	r := &Repo{
		root: root,
		meta: filepath.Join(root, model.MetadataDir),
		l:    zap.NewNop(),
	}
	for _, apply := range opts {
		apply(r)
	}

	if r.config, err = readConfig(filepath.Join(r.meta, model.ConfigFile)); err != nil {
		return nil, err
	}

	objects, err := localfs.NewAtomic(afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(r.meta, model.ObjectsDir)))
	if err != nil {
		return nil, err
	}
	r.objects = odb.New(objects, odb.Logger(r.l))

	r.tiles, err = lfs.New(filepath.Join(r.meta, filepath.FromSlash(model.LFSObjectsDir)), lfs.Logger(r.l))
	if err != nil {
		return nil, err
	}

	r.l.Debug("opened repository", zap.String("root", r.root))
	return r, nil
}

func findRoot(dir string) (string, error) {
	for current := dir; ; {
		if info, err := os.Stat(filepath.Join(current, model.MetadataDir)); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", errors.New(dir + " is not within a repository").Wrap(ErrNotARepo)
		}
		current = parent
	}
}

// Root directory of the repository, which is also the root of the file system working copy
func (r *Repo) Root() string {
	return r.root
}

// MetadataPath is the location of the metadata directory
func (r *Repo) MetadataPath() string {
	return r.meta
}

// Config of the repository
func (r *Repo) Config() Config {
	return r.config
}

// SetConfig validates and saves the configuration of the repository
func (r *Repo) SetConfig(cfg Config) error {
	if err := cfg.validate(r.root); err != nil {
		return err
	}
	if err := writeConfig(filepath.Join(r.meta, model.ConfigFile), cfg); err != nil {
		return err
	}
	r.config = cfg
	return nil
}

// Logger of the repository
func (r *Repo) Logger() *zap.Logger {
	return r.l
}

// Objects is the store of trees and commits
func (r *Repo) Objects() *odb.Store {
	return r.objects
}

// Tiles is the local tile store
func (r *Repo) Tiles() *lfs.Cache {
	return r.tiles
}

// RemoteURL is the remote blob store used to fetch missing tiles, if any
func (r *Repo) RemoteURL() string {
	if r.remote != "" {
		return r.remote
	}
	if r.config.Remote != "" {
		return r.config.Remote
	}
	return r.defaultRemote
}

// Fetcher downloads missing tiles from the remote. Without remote, fetching does nothing.
func (r *Repo) Fetcher(ctx context.Context) (*lfs.Fetcher, error) {
	r.fetcherOnce.Do(func() {
		remote, err := storage.ParseRemote(r.RemoteURL())
		if err != nil {
			r.fetcherErr = err
			return
		}
		store, err := lfs.OpenRemote(ctx, remote, r.l)
		if err != nil {
			r.fetcherErr = err
			return
		}
		r.fetcher = lfs.NewFetcher(r.tiles, store, lfs.Workers(r.workers), lfs.FetchLogger(r.l))
	})
	return r.fetcher, r.fetcherErr
}

// Workdir builds the file system part of the working copy
func (r *Repo) Workdir(ctx context.Context) (*workdir.WorkingCopy, error) {
	fetcher, err := r.Fetcher(ctx)
	if err != nil {
		return nil, err
	}
	return workdir.New(r.root,
		workdir.Logger(r.l),
		workdir.Trees(r.objects),
		workdir.Tiles(r.tiles),
		workdir.WithFetcher(fetcher),
	)
}

// DatabaseServer builds the database server part of the working copy, when one is configured
func (r *Repo) DatabaseServer() (*dbserver.WorkingCopy, error) {
	loc := r.config.WorkingCopy.Location
	if loc == "" {
		return nil, nil
	}
	return dbserver.New(loc, dbserver.Logger(r.l), dbserver.WorkdirPath(r.root))
}

// WorkingCopy gathers the parts of the working copy of the repository.
//
// Unless allowed by options, the working copy must be created and in a valid state.
func (r *Repo) WorkingCopy(ctx context.Context, opts ...GetOption) (*workingcopy.WorkingCopy, error) {
	o := getOptions{}
	for _, apply := range opts {
		apply(&o)
	}

	fsPart, err := r.Workdir(ctx)
	if err != nil {
		return nil, err
	}
	parts := []workingcopy.Part{fsPart}

	dbPart, err := r.DatabaseServer()
	if err != nil {
		return nil, err
	}
	if dbPart != nil {
		parts = append(parts, dbPart)
	}
	wc := workingcopy.New(parts...)

	if !o.allowInvalidState {
		if err = wc.CheckValidState(ctx); err != nil {
			_ = wc.Close()
			return nil, err
		}
	}
	if !o.allowUncreated {
		if err = wc.AssertCreated(ctx); err != nil {
			_ = wc.Close()
			return nil, err
		}
	}
	return wc, nil
}

// FileSystemPart extracts the file system part of a working copy
func FileSystemPart(wc *workingcopy.WorkingCopy) (*workdir.WorkingCopy, bool) {
	p, ok := wc.Part(workdir.Type)
	if !ok {
		return nil, false
	}
	w, ok := p.(*workdir.WorkingCopy)
	return w, ok
}

// DatabaseServerPart extracts the database server part of a working copy, if any
func DatabaseServerPart(wc *workingcopy.WorkingCopy) (*dbserver.WorkingCopy, bool) {
	for _, p := range wc.Parts() {
		if w, ok := p.(*dbserver.WorkingCopy); ok {
			return w, true
		}
	}
	return nil, false
}
