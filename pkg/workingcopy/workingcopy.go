// Package workingcopy defines the contract shared by all kinds of working copies.
//
// A working copy is the user-editable materialization of a tree. It is made of parts:
// the file system part holding tiles, and an optional database server part.
package workingcopy

import (
	"context"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

// Status of a working copy part
type Status uint8

// Status values
const (
	Uncreated Status = iota
	PartiallyCreated
	Created
)

func (s Status) String() string {
	switch s {
	case Uncreated:
		return "uncreated"
	case PartiallyCreated:
		return "partially created"
	case Created:
		return "created"
	default:
		return "unknown"
	}
}

// Part of a working copy
type Part interface {
	// Type of working copy, e.g. "filesystem" or "postgresql"
	Type() string
	String() string

	Status(context.Context) (Status, error)
	CheckValidState(context.Context) error
	Create(context.Context) error
	Delete(context.Context) error

	// Tree currently represented by this part. The empty tree means no tree.
	Tree(context.Context) (model.TreeID, error)
	Reset(context.Context, model.TreeID, ...ResetOption) error
	IsDirty(context.Context) (bool, error)

	Close() error
}

// TreeReader yields the datasets of a tree
type TreeReader interface {
	Datasets(context.Context, model.TreeID, model.RepoKeyFilter) (model.Datasets, error)
}

// TileStore gives access to the local content of tiles
type TileStore interface {
	LocalPath(oid string) (string, bool)
	CopyTo(oid string, fs afero.Fs, dest string) error
}

// Fetcher ensures the content of the tiles of some datasets is available locally
type Fetcher interface {
	Fetch(context.Context, model.Datasets) error
}

// WorkingCopy gathers the parts of a working copy
type WorkingCopy struct {
	parts []Part
}

// New working copy from its parts. Nil parts are ignored.
func New(parts ...Part) *WorkingCopy {
	wc := &WorkingCopy{}
	for _, p := range parts {
		if p != nil {
			wc.parts = append(wc.parts, p)
		}
	}
	return wc
}

// Parts of the working copy
func (wc *WorkingCopy) Parts() []Part {
	return wc.parts
}

// Part of a given type, if any
func (wc *WorkingCopy) Part(typ string) (Part, bool) {
	for _, p := range wc.parts {
		if p.Type() == typ {
			return p, true
		}
	}
	return nil, false
}

// CheckValidState fails when any part is corrupt
func (wc *WorkingCopy) CheckValidState(ctx context.Context) error {
	for _, p := range wc.parts {
		if err := p.CheckValidState(ctx); err != nil {
			return err
		}
	}
	return nil
}

// AssertCreated fails when any part is not fully created
func (wc *WorkingCopy) AssertCreated(ctx context.Context) error {
	for _, p := range wc.parts {
		if err := p.CheckValidState(ctx); err != nil {
			return err
		}
		st, err := p.Status(ctx)
		if err != nil {
			return err
		}
		if st != Created {
			return errors.New(p.String() + " has not been created").Wrap(status.ErrNotCreated)
		}
	}
	return nil
}

// Reset all parts to a tree
func (wc *WorkingCopy) Reset(ctx context.Context, target model.TreeID, opts ...ResetOption) error {
	for _, p := range wc.parts {
		if err := p.Reset(ctx, target, opts...); err != nil {
			return err
		}
	}
	return nil
}

// IsDirty is true when any part holds uncommitted changes
func (wc *WorkingCopy) IsDirty(ctx context.Context) (bool, error) {
	for _, p := range wc.parts {
		dirty, err := p.IsDirty(ctx)
		if err != nil {
			return false, err
		}
		if dirty {
			return true, nil
		}
	}
	return false, nil
}

// Close all parts
func (wc *WorkingCopy) Close() error {
	var err error
	for _, p := range wc.parts {
		err = multierr.Append(err, p.Close())
	}
	return err
}
