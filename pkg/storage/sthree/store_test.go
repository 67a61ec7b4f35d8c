package sthree

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

// mockS3 serves objects from memory
type mockS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func notFound() error {
	return awserr.NewRequestFailure(awserr.New("NoSuchKey", "not here", nil), http.StatusNotFound, "req")
}

func (m *mockS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if _, ok := m.objects[aws.StringValue(in.Key)]; !ok {
		return nil, notFound()
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	b, ok := m.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, notFound()
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (m *mockS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	page := &s3.ListObjectsV2Output{}
	for k := range m.objects {
		page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k)})
	}
	fn(page, true)
	return nil
}

func setupStore(t testing.TB) (*mockS3, func(...Option) storage.Store) {
	t.Helper()
	m := &mockS3{objects: map[string][]byte{
		"lfs/sixteentons":   []byte("this is the text"),
		"lfs/seventeentons": []byte("this is the text for another thing"),
	}}
	return m, func(opts ...Option) storage.Store {
		return New(Bucket("tiles"), append([]Option{Client(m)}, opts...)...)
	}
}

func TestHasGet(t *testing.T) {
	_, build := setupStore(t)
	bs := build(Prefix("lfs"))
	ctx := context.Background()

	has, err := bs.Has(ctx, "sixteentons")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = bs.Has(ctx, "fifteentons")
	require.NoError(t, err)
	assert.False(t, has)

	rdr, err := bs.Get(ctx, "sixteentons")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	assert.Equal(t, "this is the text", string(b))

	_, err = bs.Get(ctx, "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))

	assert.Equal(t, "s3@tiles/lfs", bs.String())
}

func TestKeysDelete(t *testing.T) {
	m, build := setupStore(t)
	bs := build()
	ctx := context.Background()

	keys, err := bs.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, bs.Delete(ctx, "lfs/sixteentons"))
	assert.Len(t, m.objects, 1)
}

func TestToSentinelErrors(t *testing.T) {
	for _, toPin := range []struct {
		code     int
		awsCode  string
		expected error
	}{
		{code: 400, awsCode: "InvalidBucketName", expected: status.ErrInvalidResource},
		{code: 400, awsCode: "Other", expected: status.ErrStorageAPI},
		{code: 401, expected: status.ErrUnauthorized},
		{code: 403, expected: status.ErrForbidden},
		{code: 404, awsCode: "NoSuchBucket", expected: status.ErrNotExists},
		{code: 404, awsCode: "Whatever", expected: status.ErrNotFound},
		{code: 500, expected: status.ErrStorageAPI},
	} {
		fixture := toPin
		err := toSentinelErrors(awserr.NewRequestFailure(awserr.New(fixture.awsCode, "msg", nil), fixture.code, "req"))
		assert.Truef(t, errors.Is(err, fixture.expected), "code %d/%s", fixture.code, fixture.awsCode)
	}
	assert.NoError(t, toSentinelErrors(nil))
}
