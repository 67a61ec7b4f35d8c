package workdir

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/index"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
)

// Option for the file system working copy
type Option func(*WorkingCopy)

// Logger for the working copy
func Logger(l *zap.Logger) Option {
	return func(w *WorkingCopy) {
		if l != nil {
			w.l = l
		}
	}
}

// Fs sets the file system holding the tiles of the working copy.
//
// The index and state table are always on the OS file system.
func Fs(fs afero.Fs) Option {
	return func(w *WorkingCopy) {
		if fs != nil {
			w.fs = fs
		}
	}
}

// MetadataDir sets the name of the metadata directory, relative to the working copy root
func MetadataDir(name string) Option {
	return func(w *WorkingCopy) {
		if name != "" {
			w.metaDir = name
		}
	}
}

// Trees sets the source of the datasets of trees
func Trees(r workingcopy.TreeReader) Option {
	return func(w *WorkingCopy) {
		w.trees = r
	}
}

// Tiles sets the local tile store
func Tiles(s workingcopy.TileStore) Option {
	return func(w *WorkingCopy) {
		w.tiles = s
	}
}

// WithFetcher sets the collaborator which downloads missing tiles before a reset
func WithFetcher(f workingcopy.Fetcher) Option {
	return func(w *WorkingCopy) {
		w.fetcher = f
	}
}

// IndexOptions are passed to the dirty-tracking index when it is opened
func IndexOptions(opts ...index.Option) Option {
	return func(w *WorkingCopy) {
		w.indexOpts = append(w.indexOpts, opts...)
	}
}

