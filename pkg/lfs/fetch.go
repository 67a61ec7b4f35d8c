package lfs

import (
	"context"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/storage"
)

// ErrFetch is returned when some tile content could not be fetched from the remote
var ErrFetch = errors.New("failed to fetch tiles")

// Fetcher downloads missing tile content from a remote store into the local cache.
//
// The remote uses the same object keys as the cache.
type Fetcher struct {
	cache   *Cache
	remote  storage.Store
	workers int
	l       *zap.Logger
}

// NewFetcher builds a fetcher for a cache. A nil remote makes Fetch a no-op.
func NewFetcher(cache *Cache, remote storage.Store, opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		cache:   cache,
		remote:  remote,
		workers: runtime.NumCPU(),
		l:       cache.l,
	}
	for _, apply := range opts {
		apply(f)
	}
	return f
}

// Missing lists the oids referenced by the datasets which are not in the local cache
func (f *Fetcher) Missing(datasets model.Datasets) []string {
	seen := make(map[string]struct{})
	var missing []string
	for _, d := range datasets {
		for _, t := range d.Tiles {
			if _, ok := seen[t.OID]; ok {
				continue
			}
			seen[t.OID] = struct{}{}
			if _, ok := f.cache.LocalPath(t.OID); !ok {
				missing = append(missing, t.OID)
			}
		}
	}
	sort.Strings(missing)
	return missing
}

// Fetch downloads all tiles referenced by the datasets and missing from the cache.
//
// Tiles the remote does not know about are reported by the returned error.
func (f *Fetcher) Fetch(ctx context.Context, datasets model.Datasets) error {
	if f == nil || f.remote == nil || len(datasets) == 0 {
		return nil
	}
	missing := f.Missing(datasets)
	if len(missing) == 0 {
		return nil
	}
	f.l.Info("fetching tiles", zap.Int("count", len(missing)), zap.String("remote", f.remote.String()))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(f.workers)
	for _, oid := range missing {
		oid := oid
		grp.Go(func() error {
			return f.fetchOne(gctx, oid)
		})
	}
	if err := grp.Wait(); err != nil {
		return errors.New("fetching tiles from " + f.remote.String() + ": " + err.Error()).Wrap(ErrFetch)
	}
	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, oid string) error {
	key, err := model.GetLFSObjectKey(oid)
	if err != nil {
		return err
	}
	rdr, err := f.remote.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = rdr.Close()
	}()
	if err = f.cache.PutExpected(ctx, oid, rdr); err != nil {
		return err
	}
	f.l.Debug("fetched tile", zap.String("oid", oid))
	return nil
}
