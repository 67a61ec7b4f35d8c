package gcs

import (
	"fmt"
	"testing"

	gcsStorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

func TestToSentinelErrors(t *testing.T) {
	assert.NoError(t, toSentinelErrors(nil))
	assert.True(t, errors.Is(toSentinelErrors(gcsStorage.ErrObjectNotExist), status.ErrNotExists))
	assert.True(t, errors.Is(toSentinelErrors(fmt.Errorf("wrapped: %w", gcsStorage.ErrObjectNotExist)), status.ErrNotExists))

	for _, toPin := range []struct {
		code     int
		body     string
		expected error
	}{
		{code: 400, body: "bucket is not valid", expected: status.ErrInvalidResource},
		{code: 400, expected: status.ErrStorageAPI},
		{code: 401, expected: status.ErrUnauthorized},
		{code: 403, expected: status.ErrForbidden},
		{code: 404, expected: status.ErrNotFound},
		{code: 412, expected: status.ErrExists},
		{code: 503, expected: status.ErrStorageAPI},
	} {
		fixture := toPin
		err := toSentinelErrors(&googleapi.Error{Code: fixture.code, Body: fixture.body})
		assert.Truef(t, errors.Is(err, fixture.expected), "code %d", fixture.code)
	}
}
