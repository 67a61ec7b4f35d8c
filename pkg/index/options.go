package index

import (
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/fingerprint"
)

// Option for the index
type Option func(*Index)

// Logger specifies a logger for the index
func Logger(l *zap.Logger) Option {
	return func(x *Index) {
		if l != nil {
			x.l = l
		}
	}
}

// Fingerprinter sets the oid calculator
func Fingerprinter(m *fingerprint.Maker) Option {
	return func(x *Index) {
		if m != nil {
			x.maker = m
		}
	}
}

// RacyWindow sets the duration under which a file modified just before being indexed
// is always hashed when compared, since its stat information cannot be trusted.
func RacyWindow(d time.Duration) Option {
	return func(x *Index) {
		if d >= 0 {
			x.racyWindow = d
		}
	}
}
