package repo

import "go.uber.org/zap"

// Option for a repository
type Option func(*Repo)

// Logger for the repository and everything it opens
func Logger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.l = l
		}
	}
}

// Remote overrides the configured remote blob store
func Remote(url string) Option {
	return func(r *Repo) {
		r.remote = url
	}
}

// DefaultRemote is the remote blob store used when the repository configures none
func DefaultRemote(url string) Option {
	return func(r *Repo) {
		r.defaultRemote = url
	}
}

// Workers sets the number of concurrent tile downloads
func Workers(n int) Option {
	return func(r *Repo) {
		r.workers = n
	}
}

type getOptions struct {
	allowUncreated    bool
	allowInvalidState bool
}

// GetOption alters the checks made when getting a working copy
type GetOption func(*getOptions)

// AllowUncreated accepts a working copy which has not been created yet
func AllowUncreated(enabled bool) GetOption {
	return func(o *getOptions) {
		o.allowUncreated = enabled
	}
}

// AllowInvalidState accepts a partially created working copy
func AllowInvalidState(enabled bool) GetOption {
	return func(o *getOptions) {
		o.allowInvalidState = enabled
	}
}
