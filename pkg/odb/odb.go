// Package odb stores trees and commits as yaml descriptors in a storage.Store.
//
// Descriptors are content addressed: the identifier of a tree or commit is the
// blake2b digest of its canonical descriptor.
package odb

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/fingerprint"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/storage"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

// HEAD is the symbolic name of the current commit
const HEAD = "HEAD"

var (
	// ErrNotFound indicates a tree or commit does not exist
	ErrNotFound = errors.New("object not found")

	// ErrInvalidRef indicates a revision which cannot be resolved
	ErrInvalidRef = errors.New("invalid revision")

	// ErrCorruptObject indicates a descriptor which cannot be read
	ErrCorruptObject = errors.New("corrupt object")
)

// Option for the object store
type Option func(*Store)

// Logger specifies a logger for the object store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// Store for trees and commits
type Store struct {
	store storage.Store
	maker *fingerprint.Maker
	l     *zap.Logger
}

// New object store
func New(store storage.Store, opts ...Option) *Store {
	s := &Store{
		store: store,
		maker: fingerprint.New(),
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

func (s *Store) write(ctx context.Context, key string, b []byte) error {
	err := s.store.Put(ctx, key, bytes.NewReader(b), storage.NoOverWrite)
	if err != nil && !errors.Is(err, status.ErrExists) {
		return err
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string, target interface{}) error {
	rdr, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, status.ErrNotExists) {
			return errors.New("no such object: " + key).Wrap(ErrNotFound)
		}
		return err
	}
	defer func() {
		_ = rdr.Close()
	}()
	b, err := io.ReadAll(rdr)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(b, target); err != nil {
		return errors.New("reading " + key + ": " + err.Error()).Wrap(ErrCorruptObject)
	}
	return nil
}

// WriteTree stores a tree and returns its identifier
func (s *Store) WriteTree(ctx context.Context, ds model.Datasets) (model.TreeID, error) {
	b, err := yaml.Marshal(model.NewTreeDescriptor(ds))
	if err != nil {
		return "", err
	}
	digest, err := s.maker.Digest(b)
	if err != nil {
		return "", err
	}
	id := model.TreeID(digest)
	if err = s.write(ctx, model.GetTreeDescriptorKey(id), b); err != nil {
		return "", err
	}
	s.l.Debug("wrote tree", zap.Stringer("tree", id), zap.Int("datasets", len(ds)))
	return id, nil
}

// ReadTree retrieves the descriptor of a tree
func (s *Store) ReadTree(ctx context.Context, id model.TreeID) (model.TreeDescriptor, error) {
	var td model.TreeDescriptor
	if id.IsEmpty() {
		return model.NewTreeDescriptor(nil), nil
	}
	err := s.read(ctx, model.GetTreeDescriptorKey(id), &td)
	return td, err
}

// Datasets yields the datasets of a tree, restricted by a key filter.
//
// The empty tree ID yields no dataset.
func (s *Store) Datasets(ctx context.Context, id model.TreeID, filter model.RepoKeyFilter) (model.Datasets, error) {
	if id.IsEmpty() {
		return make(model.Datasets), nil
	}
	td, err := s.ReadTree(ctx, id)
	if err != nil {
		return nil, err
	}
	ds := td.ToDatasets()
	if filter.MatchAll() {
		return ds, nil
	}
	return filter.Filter(ds), nil
}

// WriteCommit stores a commit pointing to a tree
func (s *Store) WriteCommit(ctx context.Context, tree model.TreeID, opts ...model.CommitOption) (model.CommitID, error) {
	if tree.IsEmpty() {
		return "", errors.New("cannot commit without a tree").Wrap(ErrInvalidRef)
	}
	b, err := yaml.Marshal(model.NewCommitDescriptor(tree, opts...))
	if err != nil {
		return "", err
	}
	digest, err := s.maker.Digest(b)
	if err != nil {
		return "", err
	}
	id := model.CommitID(digest)
	if err = s.write(ctx, model.GetCommitDescriptorKey(id), b); err != nil {
		return "", err
	}
	s.l.Debug("wrote commit", zap.String("commit", string(id)), zap.Stringer("tree", tree))
	return id, nil
}

// ReadCommit retrieves the descriptor of a commit
func (s *Store) ReadCommit(ctx context.Context, id model.CommitID) (model.CommitDescriptor, error) {
	var cd model.CommitDescriptor
	err := s.read(ctx, model.GetCommitDescriptorKey(id), &cd)
	return cd, err
}

// Head returns the current commit, or the empty id when nothing has been committed yet
func (s *Store) Head(ctx context.Context) (model.CommitID, error) {
	rdr, err := s.store.Get(ctx, model.GetHeadKey())
	if err != nil {
		if errors.Is(err, status.ErrNotExists) {
			return "", nil
		}
		return "", err
	}
	defer func() {
		_ = rdr.Close()
	}()
	b, err := io.ReadAll(rdr)
	if err != nil {
		return "", err
	}
	return model.CommitID(strings.TrimSpace(string(b))), nil
}

// SetHead moves HEAD to a commit
func (s *Store) SetHead(ctx context.Context, id model.CommitID) error {
	if _, err := s.ReadCommit(ctx, id); err != nil {
		return err
	}
	return s.store.Put(ctx, model.GetHeadKey(), strings.NewReader(string(id)+"\n"), storage.OverWrite)
}

// HeadTree returns the tree of the current commit, or the empty tree id
func (s *Store) HeadTree(ctx context.Context) (model.TreeID, error) {
	head, err := s.Head(ctx)
	if err != nil || head == "" {
		return "", err
	}
	cd, err := s.ReadCommit(ctx, head)
	if err != nil {
		return "", err
	}
	return cd.Tree, nil
}

// ResolveCommit resolves a revision to a commit id.
//
// A revision is HEAD, a commit id, or a unique prefix of at least 4 characters of a commit id.
// A trailing "^" selects the first parent, and may be repeated.
func (s *Store) ResolveCommit(ctx context.Context, rev string) (model.CommitID, error) {
	base := strings.TrimRight(rev, "^")
	parents := len(rev) - len(base)

	var (
		id  model.CommitID
		err error
	)
	if base == HEAD || base == "" {
		id, err = s.Head(ctx)
		if err == nil && id == "" {
			err = errors.New("HEAD does not point to any commit yet").Wrap(ErrInvalidRef)
		}
	} else {
		var found string
		found, err = s.findByPrefix(ctx, "commits/", base)
		id = model.CommitID(found)
	}
	if err != nil {
		return "", err
	}

	for i := 0; i < parents; i++ {
		cd, err := s.ReadCommit(ctx, id)
		if err != nil {
			return "", err
		}
		if len(cd.Parents) == 0 {
			return "", errors.New("revision " + rev + " goes beyond the first commit").Wrap(ErrInvalidRef)
		}
		id = cd.Parents[0]
	}
	return id, nil
}

// ResolveTree resolves a revision to a tree id.
//
// Commit revisions are peeled to their tree. A tree id, or a unique tree id prefix, is accepted as is.
func (s *Store) ResolveTree(ctx context.Context, rev string) (model.TreeID, error) {
	commit, err := s.ResolveCommit(ctx, rev)
	if err == nil {
		cd, e := s.ReadCommit(ctx, commit)
		if e != nil {
			return "", e
		}
		return cd.Tree, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	id, terr := s.findByPrefix(ctx, "trees/", rev)
	if terr != nil {
		return "", err
	}
	return model.TreeID(id), nil
}

func (s *Store) findByPrefix(ctx context.Context, dir, prefix string) (string, error) {
	if len(prefix) < 4 {
		return "", errors.New("revision " + prefix + " is too short").Wrap(ErrInvalidRef)
	}
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, k := range keys {
		if !strings.HasPrefix(k, dir) || !strings.HasSuffix(k, ".yaml") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, dir), ".yaml")
		if strings.HasPrefix(id, prefix) {
			candidates = append(candidates, id)
		}
	}
	switch len(candidates) {
	case 0:
		return "", errors.New("unknown revision " + prefix).Wrap(ErrNotFound)
	case 1:
		return candidates[0], nil
	default:
		sort.Strings(candidates)
		return "", errors.New("ambiguous revision " + prefix + ": " + strings.Join(candidates, ", ")).Wrap(ErrInvalidRef)
	}
}

// LogEntry is a commit with its id
type LogEntry struct {
	ID model.CommitID
	model.CommitDescriptor
}

// Log walks first parents from a commit, most recent first. A limit <= 0 means no limit.
func (s *Store) Log(ctx context.Context, from model.CommitID, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	for id := from; id != "" && (limit <= 0 || len(entries) < limit); {
		cd, err := s.ReadCommit(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, LogEntry{ID: id, CommitDescriptor: cd})
		if len(cd.Parents) == 0 {
			break
		}
		id = cd.Parents[0]
	}
	return entries, nil
}
