package lfs

import (
	"context"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/storage"
	"github.com/oneconcern/tilekeeper/pkg/storage/gcs"
	"github.com/oneconcern/tilekeeper/pkg/storage/localfs"
	"github.com/oneconcern/tilekeeper/pkg/storage/sthree"
)

// OpenRemote builds the store for a remote location. A nil remote yields a nil store.
func OpenRemote(ctx context.Context, remote *storage.Remote, l *zap.Logger) (storage.Store, error) {
	if remote == nil {
		return nil, nil
	}
	switch remote.Scheme {
	case "s3":
		opts := []sthree.Option{sthree.Logger(l)}
		if remote.Prefix != "" {
			opts = append(opts, sthree.Prefix(remote.Prefix))
		}
		return sthree.New(sthree.Bucket(remote.Bucket), opts...), nil
	case "gs":
		opts := []gcs.Option{gcs.Logger(l)}
		if remote.Prefix != "" {
			opts = append(opts, gcs.Prefix(remote.Prefix))
		}
		return gcs.New(ctx, remote.Bucket, opts...)
	default:
		return localfs.New(afero.NewBasePathFs(afero.NewOsFs(), remote.Path)), nil
	}
}
