package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/internal/rand"
)

func TestReader(t *testing.T) {
	content := rand.Bytes(1024 * 1024)
	sum := sha256.Sum256(content)

	m := New(BufferSize(4096))
	oid, size, err := m.Reader(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "sha256:"+hex.EncodeToString(sum[:]), oid)
	assert.EqualValues(t, len(content), size)
}

func TestFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tiles/a.laz", []byte("hello"), 0644))

	oid, size, err := New().File(fs, "/tiles/a.laz")
	require.NoError(t, err)
	assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", oid)
	assert.EqualValues(t, 5, size)

	_, _, err = New().File(fs, "/tiles/missing.laz")
	require.Error(t, err)
}

func TestTee(t *testing.T) {
	content := rand.Bytes(10000)
	m := New()
	tee := m.TeeWriter()
	var buf bytes.Buffer

	_, err := io.Copy(io.MultiWriter(&buf, tee), bytes.NewReader(content))
	require.NoError(t, err)

	expected, size, err := m.Reader(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, expected, tee.OID())
	assert.Equal(t, size, tee.Size())
}

func TestDigest(t *testing.T) {
	m := New()
	d1, err := m.Digest([]byte("tree"))
	require.NoError(t, err)
	assert.Len(t, d1, 64)

	d2, err := m.Digest([]byte("tree"))
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	d3, err := m.Digest([]byte("other tree"))
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)

	short, err := New(Size(20)).Digest([]byte("tree"))
	require.NoError(t, err)
	assert.Len(t, short, 40)
}
