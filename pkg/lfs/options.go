package lfs

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/fingerprint"
)

// Option for the tile cache
type Option func(*Cache)

// Logger specifies a logger for the cache
func Logger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.l = l
		}
	}
}

// Fs sets the underlying file system. It defaults to the OS file system.
func Fs(fs afero.Fs) Option {
	return func(c *Cache) {
		c.fs = fs
	}
}

// Fingerprinter sets the oid calculator
func Fingerprinter(m *fingerprint.Maker) Option {
	return func(c *Cache) {
		if m != nil {
			c.maker = m
		}
	}
}

// FetchOption for the fetcher
type FetchOption func(*Fetcher)

// Workers sets the number of concurrent downloads
func Workers(n int) FetchOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// FetchLogger specifies a logger for the fetcher
func FetchLogger(l *zap.Logger) FetchOption {
	return func(f *Fetcher) {
		if l != nil {
			f.l = l
		}
	}
}
