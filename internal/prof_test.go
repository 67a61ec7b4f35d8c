package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles(t *testing.T) {
	dir := t.TempDir()

	stop, err := StartCPUProfile(filepath.Join(dir, "cpu.prof"))
	require.NoError(t, err)
	require.NoError(t, stop())

	require.NoError(t, WriteHeapProfile(filepath.Join(dir, "mem.prof")))
	info, err := os.Stat(filepath.Join(dir, "mem.prof"))
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	_, err = StartCPUProfile(filepath.Join(dir, "missing", "cpu.prof"))
	require.Error(t, err)
}
