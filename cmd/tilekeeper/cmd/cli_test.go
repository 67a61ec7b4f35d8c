package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/index"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/state"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

// resetFlags restores all flags to their default values between two runs of the root command
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// run executes the command line, and returns its standard output
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	color.NoColor = true

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "running %s", strings.Join(args, " "))
	return out
}

// setupRepo initializes a repository and prepares a directory of tiles to import
func setupRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tiles")
	out := mustRun(t, "init", dir)
	assert.Contains(t, out, "Initialized empty repository in "+dir)

	src := t.TempDir()
	for name, content := range map[string]string{"a.laz": "alpha", "b.laz": "bravo"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(content), 0600))
	}
	return dir, src
}

func readFile(t *testing.T, pth string) string {
	t.Helper()
	b, err := os.ReadFile(pth)
	require.NoError(t, err)
	return string(b)
}

func TestCLIWorkflow(t *testing.T) {
	dir, src := setupRepo(t)

	out := mustRun(t, "--repo", dir, "status")
	assert.Contains(t, out, "No commits yet")

	out = mustRun(t, "--repo", dir, "import", "--dataset", "nz/auckland", "-m", "first import", src)
	assert.Contains(t, out, "Imported 2 files")
	assert.Contains(t, out, "into nz/auckland: 2 tiles")
	tilePath := filepath.Join(dir, "nz", "auckland", "a.laz")
	assert.Equal(t, "alpha", readFile(t, tilePath))

	out = mustRun(t, "--repo", dir, "status")
	assert.Contains(t, out, "HEAD is commit")
	assert.Contains(t, out, "Nothing to commit, working copy clean")

	require.NoError(t, os.WriteFile(tilePath, []byte("alpha, edited"), 0600))
	require.NoError(t, os.Remove(filepath.Join(dir, "nz", "auckland", "b.laz")))

	out = mustRun(t, "--repo", dir, "status")
	assert.Contains(t, out, "Changes in working copy:")
	assert.Contains(t, out, "nz/auckland")

	out = mustRun(t, "--repo", dir, "diff")
	assert.Contains(t, out, "--- nz/auckland")
	assert.Contains(t, out, "~ a.laz")
	assert.Contains(t, out, "- b.laz")

	_, err := run(t, "--repo", dir, "checkout")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUncommittedChanges))
	assert.Equal(t, status.ExitInvalidOperation, exitCodeFor(err))

	out = mustRun(t, "--repo", dir, "commit", "-m", "edit auckland", "--author-name", "Tile Keeper")
	assert.Contains(t, out, "1 datasets changed: 0 inserts, 1 updates, 1 deletes")

	out = mustRun(t, "--repo", dir, "log")
	assert.Contains(t, out, "edit auckland")
	assert.Contains(t, out, "first import")
	assert.Contains(t, out, "Author: Tile Keeper")
	assert.Less(t, strings.Index(out, "edit auckland"), strings.Index(out, "first import"), "most recent first")

	out = mustRun(t, "--repo", dir, "log", "-n", "1")
	assert.NotContains(t, out, "first import")

	mustRun(t, "--repo", dir, "reset", "HEAD^")
	assert.Equal(t, "alpha", readFile(t, tilePath))
	assert.Equal(t, "bravo", readFile(t, filepath.Join(dir, "nz", "auckland", "b.laz")))

	out = mustRun(t, "--repo", dir, "log")
	assert.NotContains(t, out, "edit auckland")
}

func TestCLICheckoutAndRestore(t *testing.T) {
	dir, src := setupRepo(t)
	mustRun(t, "--repo", dir, "import", "--dataset", "nz/auckland", src)
	tilePath := filepath.Join(dir, "nz", "auckland", "a.laz")

	require.NoError(t, os.WriteFile(tilePath, []byte("alpha, edited"), 0600))
	mustRun(t, "--repo", dir, "restore", "nz/auckland:a.laz")
	assert.Equal(t, "alpha", readFile(t, tilePath))

	require.NoError(t, os.WriteFile(tilePath, []byte("alpha, edited"), 0600))
	out := mustRun(t, "--repo", dir, "checkout", "--discard-changes")
	assert.Contains(t, out, "Checked out tree")
	assert.Equal(t, "alpha", readFile(t, tilePath))

	_, err := run(t, "--repo", dir, "checkout", "--rewrite-full", "nz/auckland")
	require.Error(t, err)
	assert.Equal(t, status.ExitUsage, exitCodeFor(err))

	mustRun(t, "--repo", dir, "checkout", "--rewrite-full")
	assert.Equal(t, "alpha", readFile(t, tilePath))
}

func TestCLIImportErrors(t *testing.T) {
	dir, src := setupRepo(t)
	mustRun(t, "--repo", dir, "import", "--dataset", "nz/auckland", src)

	_, err := run(t, "--repo", dir, "import", "--dataset", "nz/auckland", src)
	require.Error(t, err)
	assert.Equal(t, status.ExitInvalidOperation, exitCodeFor(err))

	_, err = run(t, "--repo", dir, "import", "--dataset", "nz/auckland", "--replace", "--update", src)
	require.Error(t, err)
	assert.Equal(t, status.ExitUsage, exitCodeFor(err))

	out := mustRun(t, "--repo", dir, "import", "--dataset", "nz/auckland", "--delete", "b.laz")
	assert.Contains(t, out, "into nz/auckland: 1 tiles")
	_, err = os.Stat(filepath.Join(dir, "nz", "auckland", "b.laz"))
	assert.True(t, os.IsNotExist(err))
}

func TestCLIUsageErrors(t *testing.T) {
	dir, _ := setupRepo(t)

	for _, args := range [][]string{
		{"--repo", dir, "reset"},
		{"--repo", dir, "status", "extra"},
		{"--repo", dir, "status", "--no-such-flag"},
		{"--repo", dir, "diff", "nz:"},
		{"--repo", dir, "commit"},
		{"--repo", dir, "--loglevel", "chatty", "status"},
		{"workingcopy", "check-uri", "oracle://host/db/schema"},
	} {
		_, err := run(t, args...)
		require.Error(t, err, "for %v", args)
		assert.Equal(t, status.ExitUsage, exitCodeFor(err), "for %v: %v", args, err)
	}

	_, err := run(t, "--repo", t.TempDir(), "status")
	require.Error(t, err)
}

func TestCLIWorkingCopy(t *testing.T) {
	dir, src := setupRepo(t)
	mustRun(t, "--repo", dir, "import", "--dataset", "nz/auckland", src)

	out := mustRun(t, "--repo", dir, "workingcopy", "status")
	assert.Contains(t, out, "filesystem")
	assert.Contains(t, out, "created")

	out = mustRun(t, "--repo", dir, "workingcopy", "delete")
	assert.Contains(t, out, "Deleted filesystem working copy")
	out = mustRun(t, "--repo", dir, "workingcopy", "status")
	assert.Contains(t, out, "uncreated")

	_, err := run(t, "--repo", dir, "diff")
	require.Error(t, err)
	assert.Equal(t, status.ExitNoWorkingCopy, exitCodeFor(err))

	out = mustRun(t, "--repo", dir, "workingcopy", "create")
	assert.Contains(t, out, "Created filesystem working copy")
	out = mustRun(t, "--repo", dir, "status")
	assert.Contains(t, out, "Nothing to commit, working copy clean")
}

func TestCLICheckURI(t *testing.T) {
	dir, _ := setupRepo(t)

	out := mustRun(t, "workingcopy", "check-uri", "postgresql://db.example.com/gis/tiles")
	assert.Contains(t, out, "Valid PostgreSQL working copy URI")

	_, err := run(t, "--repo", dir, "workingcopy", "check-uri", "postgresql://db.example.com/gis")
	require.Error(t, err)
	assert.Equal(t, status.ExitUsage, exitCodeFor(err))
	assert.Contains(t, err.Error(), "For example: postgresql://db.example.com/gis/tiles_sno")

	_, err = run(t, "--repo", dir, "workingcopy", "set-location", "postgresql://db.example.com/gis")
	require.Error(t, err)
	assert.Equal(t, status.ExitUsage, exitCodeFor(err))
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	assert.Regexp(t, `Version:\s+dev`, out)
}

func TestProfileFlags(t *testing.T) {
	dir := t.TempDir()
	cpu, mem := filepath.Join(dir, "cpu.prof"), filepath.Join(dir, "mem.prof")
	mustRun(t, "--cpuprofile", cpu, "--memprofile", mem, "version")
	assert.FileExists(t, cpu)
	assert.FileExists(t, mem)
}

func TestExitCodeFor(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{err: fmt.Errorf("boom"), code: status.ExitDefault},
		{err: errors.New("bad args").Wrap(status.ErrUsage), code: status.ExitUsage},
		{err: errors.New("no wc").Wrap(status.ErrNotCreated), code: status.ExitNoWorkingCopy},
		{err: errors.New("no db").Wrap(status.ErrConnection), code: status.ExitDBConnection},
		{err: errors.New("broken").Wrap(index.ErrIndex), code: status.ExitSubprocess},
		{err: errors.New("broken").Wrap(state.ErrState), code: status.ExitSubprocess},
		{err: errors.New("filter").Wrap(model.ErrInvalidFilter), code: status.ExitDefault},
	} {
		assert.Equal(t, tc.code, exitCodeFor(tc.err), "for %v", tc.err)
	}
}

func TestWrapFatalWithCode(t *testing.T) {
	var code int
	osExit = func(c int) { code = c }
	defer func() { osExit = os.Exit }()

	wrapFatalWithCode(errors.New("corrupt").Wrap(status.ErrCorrupt))
	assert.Equal(t, status.ExitNoWorkingCopy, code)
}
