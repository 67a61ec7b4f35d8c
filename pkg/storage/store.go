// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

const (
	// NoOverWrite makes Put fail when the key already exists
	NoOverWrite = true
	// OverWrite makes Put replace an existing key
	OverWrite = false
)

// Store implementations know how to write entries to a K/V model.Store.
//
// Typically this is something file system-like. Examples are S3, local FS, NFS, ...
// Implementations of this interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}

// Copy streams an object from a source store to a destination store.
//
// An existing destination object is kept, and no error is returned.
func Copy(ctx context.Context, src Store, srcKey string, dst Store, dstKey string) error {
	reader, err := src.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	defer func() {
		_ = reader.Close()
	}()
	err = dst.Put(ctx, dstKey, reader, NoOverWrite)
	if err != nil && !errors.Is(err, status.ErrExists) {
		return err
	}
	return nil
}
