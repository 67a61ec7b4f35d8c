// Copyright © 2018 One Concern

// Package gcs implements a storage.Store backed by a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"io"
	"path"

	gcsStorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

// Option is a functor to pass optional parameters to the gcs store
type Option func(*gcs)

// Logger specifies a logger for this store
func Logger(logger *zap.Logger) Option {
	return func(g *gcs) {
		if logger != nil {
			g.l = logger
		}
	}
}

// Prefix sets a key prefix within the bucket
func Prefix(prefix string) Option {
	return func(g *gcs) {
		g.prefix = prefix
	}
}

// ClientOptions passes options to the google API clients, e.g. credentials or endpoint
func ClientOptions(opts ...option.ClientOption) Option {
	return func(g *gcs) {
		g.clientOpts = append(g.clientOpts, opts...)
	}
}

type gcs struct {
	client         *gcsStorage.Client
	readOnlyClient *gcsStorage.Client
	bucket         string
	prefix         string
	clientOpts     []option.ClientOption
	l              *zap.Logger
}

// New GCS store
func New(ctx context.Context, bucket string, opts ...Option) (storage.Store, error) {
	googleStore := &gcs{bucket: bucket, l: zap.NewNop()}
	for _, apply := range opts {
		apply(googleStore)
	}
	var err error
	googleStore.readOnlyClient, err = gcsStorage.NewClient(ctx,
		append([]option.ClientOption{option.WithScopes(gcsStorage.ScopeReadOnly)}, googleStore.clientOpts...)...)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	googleStore.client, err = gcsStorage.NewClient(ctx,
		append([]option.ClientOption{option.WithScopes(gcsStorage.ScopeFullControl)}, googleStore.clientOpts...)...)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return googleStore, nil
}

func (g *gcs) key(objectName string) string {
	if g.prefix == "" {
		return objectName
	}
	return path.Join(g.prefix, objectName)
}

func (g *gcs) String() string {
	if g.prefix != "" {
		return "gcs://" + g.bucket + "/" + g.prefix
	}
	return "gcs://" + g.bucket
}

func (g *gcs) Has(ctx context.Context, objectName string) (bool, error) {
	_, err := g.readOnlyClient.Bucket(g.bucket).Object(g.key(objectName)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcsStorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, toSentinelErrors(err)
	}
	return true, nil
}

func (g *gcs) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	g.l.Debug("gcs get", zap.String("bucket", g.bucket), zap.String("object", g.key(objectName)))
	objectReader, err := g.readOnlyClient.Bucket(g.bucket).Object(g.key(objectName)).NewReader(ctx)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return objectReader, nil
}

func (g *gcs) Put(ctx context.Context, objectName string, reader io.Reader, doesNotExist bool) error {
	obj := g.client.Bucket(g.bucket).Object(g.key(objectName))
	if doesNotExist {
		obj = obj.If(gcsStorage.Conditions{DoesNotExist: true})
	}
	writer := obj.NewWriter(ctx)
	if _, err := io.Copy(writer, reader); err != nil {
		_ = writer.Close()
		return toSentinelErrors(err)
	}
	return toSentinelErrors(writer.Close())
}

func (g *gcs) Delete(ctx context.Context, objectName string) error {
	err := g.client.Bucket(g.bucket).Object(g.key(objectName)).Delete(ctx)
	if errors.Is(err, gcsStorage.ErrObjectNotExist) {
		return nil
	}
	return toSentinelErrors(err)
}

func (g *gcs) Keys(ctx context.Context) ([]string, error) {
	var q *gcsStorage.Query
	if g.prefix != "" {
		q = &gcsStorage.Query{Prefix: g.prefix + "/"}
	}
	objectsIterator := g.readOnlyClient.Bucket(g.bucket).Objects(ctx, q)
	var keys []string
	for {
		attrs, err := objectsIterator.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, toSentinelErrors(err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (g *gcs) Clear(context.Context) error {
	return errors.New("clearing a gcs bucket").Wrap(status.ErrNotSupported)
}
