// Package internal holds helpers shared by the command line and the tests.
package internal

import (
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/multierr"
)

// StartCPUProfile writes a CPU profile to a file until the returned function is called
func StartCPUProfile(pth string) (func() error, error) {
	f, err := os.Create(pth)
	if err != nil {
		return nil, err
	}
	if err = pprof.StartCPUProfile(f); err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	return func() error {
		pprof.StopCPUProfile()
		return f.Close()
	}, nil
}

// WriteHeapProfile writes the profile of live heap objects to a file
func WriteHeapProfile(pth string) error {
	f, err := os.Create(pth)
	if err != nil {
		return err
	}
	runtime.GC()
	return multierr.Append(pprof.Lookup("heap").WriteTo(f, 0), f.Close())
}
