package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

func TestParseRemote(t *testing.T) {
	r, err := ParseRemote("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ParseRemote("file:///srv/tiles")
	require.NoError(t, err)
	assert.Equal(t, &Remote{Scheme: "file", Path: "/srv/tiles"}, r)
	assert.Equal(t, "file:///srv/tiles", r.String())

	r, err = ParseRemote("s3://my-bucket/some/prefix/")
	require.NoError(t, err)
	assert.Equal(t, &Remote{Scheme: "s3", Bucket: "my-bucket", Prefix: "some/prefix"}, r)
	assert.Equal(t, "s3://my-bucket/some/prefix", r.String())

	r, err = ParseRemote("gs://my-bucket")
	require.NoError(t, err)
	assert.Equal(t, "gs://my-bucket", r.String())

	for _, bad := range []string{"ftp://host/x", "s3:///nobucket", "file://", "::"} {
		_, err = ParseRemote(bad)
		require.Errorf(t, err, "expected %q to fail", bad)
		assert.True(t, errors.Is(err, status.ErrUnsupportedRemote))
	}
}
