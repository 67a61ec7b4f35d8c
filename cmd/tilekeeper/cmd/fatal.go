package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/index"
	"github.com/oneconcern/tilekeeper/pkg/state"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

var (
	// globals used to patch over calls to os.Exit() during test

	logFatalln = log.Fatalln
	osExit     = os.Exit
)

// exitCodeFor maps an error to the exit code of the process
func exitCodeFor(err error) int {
	if code := errors.Code(err); code != 0 {
		return code
	}
	if errors.Is(err, index.ErrIndex) || errors.Is(err, state.ErrState) {
		return status.ExitSubprocess
	}
	return status.ExitDefault
}

func wrapFatalWithCode(err error) {
	wrapFatalWithCodef(exitCodeFor(err), "%s %v", color.RedString("Error:"), err)
}

func wrapFatalWithCodef(code int, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	osExit(code)
}
