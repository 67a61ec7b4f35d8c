// Package lfs gives access to the local cache of tile content, and fills it from a remote store.
//
// Tiles are stored under <metadata dir>/lfs/objects/<h0h1>/<h2h3>/<hex oid>, the layout used by git-lfs.
package lfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/fingerprint"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/storage"
	"github.com/oneconcern/tilekeeper/pkg/storage/localfs"
)

const incomingDir = ".incoming"

// ErrOIDMismatch is returned when some content does not hash to its expected oid
var ErrOIDMismatch = errors.New("tile content does not match its oid")

// Cache is the local tile store
type Cache struct {
	root  string
	fs    afero.Fs
	store storage.Store
	maker *fingerprint.Maker
	l     *zap.Logger
}

// New local tile cache rooted at some directory
func New(root string, opts ...Option) (*Cache, error) {
	c := &Cache{
		root:  root,
		maker: fingerprint.New(),
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(c)
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if err := c.fs.MkdirAll(filepath.Join(root, incomingDir), 0700); err != nil {
		return nil, errors.New("creating tile cache at " + root + ": " + err.Error())
	}
	store, err := localfs.NewAtomic(afero.NewBasePathFs(c.fs, root))
	if err != nil {
		return nil, err
	}
	c.store = store
	return c, nil
}

// Root directory of the cache
func (c *Cache) Root() string {
	return c.root
}

// Store exposes the cache as a storage.Store keyed by LFS object keys
func (c *Cache) Store() storage.Store {
	return c.store
}

// LocalPath returns the path of the tile content in the cache, if present
func (c *Cache) LocalPath(oid string) (string, bool) {
	key, err := model.GetLFSObjectKey(oid)
	if err != nil {
		return "", false
	}
	pth := filepath.Join(c.root, filepath.FromSlash(key))
	fi, err := c.fs.Stat(pth)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false
	}
	return pth, true
}

// Has tells if the content of a tile is in the cache
func (c *Cache) Has(ctx context.Context, oid string) (bool, error) {
	key, err := model.GetLFSObjectKey(oid)
	if err != nil {
		return false, err
	}
	return c.store.Has(ctx, key)
}

// Open the content of a tile
func (c *Cache) Open(ctx context.Context, oid string) (io.ReadCloser, error) {
	key, err := model.GetLFSObjectKey(oid)
	if err != nil {
		return nil, err
	}
	return c.store.Get(ctx, key)
}

// Put stores some content in the cache, and returns its oid and size
func (c *Cache) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	tmp, err := afero.TempFile(c.fs, filepath.Join(c.root, incomingDir), "tile-")
	if err != nil {
		return "", 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = c.fs.Remove(tmpName)
	}()

	tee := c.maker.TeeWriter()
	if _, err = io.Copy(io.MultiWriter(tmp, tee), r); err != nil {
		_ = tmp.Close()
		return "", 0, err
	}
	if err = tmp.Close(); err != nil {
		return "", 0, err
	}

	oid := tee.OID()
	key, _ := model.GetLFSObjectKey(oid)
	target := filepath.Join(c.root, filepath.FromSlash(key))
	if _, err = c.fs.Stat(target); err == nil {
		return oid, tee.Size(), nil
	}
	if err = c.fs.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return "", 0, err
	}
	if err = c.fs.Rename(tmpName, target); err != nil {
		return "", 0, err
	}
	c.l.Debug("stored tile content", zap.String("oid", oid), zap.Int64("size", tee.Size()))
	return oid, tee.Size(), nil
}

// PutExpected stores some content in the cache, which must hash to the expected oid
func (c *Cache) PutExpected(ctx context.Context, expected string, r io.Reader) error {
	oid, _, err := c.Put(ctx, r)
	if err != nil {
		return err
	}
	if oid != expected {
		if key, e := model.GetLFSObjectKey(oid); e == nil {
			_ = c.store.Delete(ctx, key)
		}
		return errors.New("expected " + expected + ", got " + oid).Wrap(ErrOIDMismatch)
	}
	return nil
}

// PutFile stores the content of a file in the cache, and returns the corresponding tile
func (c *Cache) PutFile(ctx context.Context, fs afero.Fs, pth string) (model.Tile, error) {
	f, err := fs.Open(pth)
	if err != nil {
		return model.Tile{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	oid, size, err := c.Put(ctx, f)
	if err != nil {
		return model.Tile{}, err
	}
	return model.Tile{Name: filepath.Base(pth), OID: oid, Size: size}, nil
}

// CopyTo materializes the content of a tile at some path
func (c *Cache) CopyTo(oid string, fs afero.Fs, dest string) error {
	src, ok := c.LocalPath(oid)
	if !ok {
		return errors.New("tile " + oid + " is not in the local cache").Wrap(os.ErrNotExist)
	}
	in, err := c.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	out, err := fs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
