package storage

import (
	"net/url"
	"strings"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

// Remote describes the location of a remote blob store, parsed from a URL
// such as file:///srv/tiles, s3://bucket/prefix or gs://bucket/prefix.
type Remote struct {
	Scheme string
	Bucket string
	Prefix string
	Path   string
}

// ParseRemote parses a remote URL. An empty URL yields a nil remote.
func ParseRemote(raw string) (*Remote, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New("invalid remote " + raw + ": " + err.Error()).Wrap(status.ErrUnsupportedRemote)
	}
	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return nil, errors.New("file remote requires an absolute path: " + raw).Wrap(status.ErrUnsupportedRemote)
		}
		return &Remote{Scheme: u.Scheme, Path: u.Path}, nil
	case "s3", "gs":
		if u.Host == "" {
			return nil, errors.New("remote requires a bucket: " + raw).Wrap(status.ErrUnsupportedRemote)
		}
		return &Remote{Scheme: u.Scheme, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	default:
		return nil, errors.New("unsupported remote scheme " + u.Scheme + " in " + raw).Wrap(status.ErrUnsupportedRemote)
	}
}

func (r *Remote) String() string {
	if r == nil {
		return ""
	}
	if r.Scheme == "file" {
		return "file://" + r.Path
	}
	res := r.Scheme + "://" + r.Bucket
	if r.Prefix != "" {
		res += "/" + r.Prefix
	}
	return res
}
