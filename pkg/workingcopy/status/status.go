// Package status declares the errors returned by working copies, and the process
// exit codes they translate to.
//
// NOTE: such constants are located in a separate package to avoid cyclical
// dependencies between pkg/workingcopy and its implementations.
package status

import "github.com/oneconcern/tilekeeper/pkg/errors"

// Exit codes
const (
	ExitDefault           = 1
	ExitUsage             = 2
	ExitInvalidOperation  = 20
	ExitNotYetImplemented = 30
	ExitNoWorkingCopy     = 45
	ExitDBConnection      = 60
	ExitSubprocess        = 129
)

var (
	// ErrCorrupt indicates a working copy with only some of its required parts
	ErrCorrupt = errors.New("working copy is corrupt").WithCode(ExitNoWorkingCopy)

	// ErrNotCreated indicates an operation on a working copy which does not exist
	ErrNotCreated = errors.New("working copy does not exist").WithCode(ExitNoWorkingCopy)

	// ErrAlreadyExists indicates an attempt to create a working copy over an existing one
	ErrAlreadyExists = errors.New("working copy already exists").WithCode(ExitInvalidOperation)

	// ErrUnsupported indicates a change that cannot be applied with the requested options
	ErrUnsupported = errors.New("unsupported working copy operation").WithCode(ExitNotYetImplemented)

	// ErrConnection indicates a database server working copy that cannot be reached
	ErrConnection = errors.New("working copy connection failure").WithCode(ExitDBConnection)

	// ErrUsage indicates invalid user input, such as a malformed working copy location
	ErrUsage = errors.New("invalid working copy usage").WithCode(ExitUsage)

	// ErrPathEscape indicates a path resolving outside of the working copy
	ErrPathEscape = errors.New("path escapes the working copy").WithCode(ExitInvalidOperation)

	// ErrMissingLocalContent indicates a tile whose content is not in the local cache.
	//
	// It is only ever reported as a warning.
	ErrMissingLocalContent = errors.New("tile content is missing locally")
)
