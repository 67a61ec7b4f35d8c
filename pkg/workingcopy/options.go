package workingcopy

import (
	"github.com/oneconcern/tilekeeper/pkg/model"
)

// ResetOptions drive how a working copy is reset to a tree
type ResetOptions struct {
	// KeyFilter restricts the datasets and tiles which are reset
	KeyFilter model.RepoKeyFilter

	// TrackChangesAsDirty keeps the recorded tree, so that the changes brought by the
	// reset show up as uncommitted changes
	TrackChangesAsDirty bool

	// RewriteFull rewrites every dataset, even when unchanged
	RewriteFull bool

	// Warnings receives non-fatal problems, such as missing tile content
	Warnings func(error)
}

// ResetOption alters reset options
type ResetOption func(*ResetOptions)

// KeyFilter restricts a reset to some datasets and tiles
func KeyFilter(f model.RepoKeyFilter) ResetOption {
	return func(o *ResetOptions) {
		o.KeyFilter = f
	}
}

// TrackChangesAsDirty keeps the changes brought by a reset as uncommitted changes
func TrackChangesAsDirty(enabled bool) ResetOption {
	return func(o *ResetOptions) {
		o.TrackChangesAsDirty = enabled
	}
}

// RewriteFull rewrites every dataset
func RewriteFull(enabled bool) ResetOption {
	return func(o *ResetOptions) {
		o.RewriteFull = enabled
	}
}

// Warnings sets a callback for non-fatal problems
func Warnings(fn func(error)) ResetOption {
	return func(o *ResetOptions) {
		o.Warnings = fn
	}
}

// ApplyResetOptions builds reset options. The default filter matches everything.
func ApplyResetOptions(opts ...ResetOption) ResetOptions {
	o := ResetOptions{
		KeyFilter: model.MatchAll,
		Warnings:  func(error) {},
	}
	for _, apply := range opts {
		apply(&o)
	}
	if o.Warnings == nil {
		o.Warnings = func(error) {}
	}
	return o
}
