// Package index implements the dirty-tracking index of a file system working copy.
//
// The index records, for each file of the working copy, its oid together with the
// stat information observed when the entry was written. Comparing the working copy
// to the index only needs to hash files whose stat information changed.
//
// Entries are stored in a badger key/value store, keyed by slash-separated path.
package index

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/dlogger"
	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/fingerprint"
)

var (
	// ErrIndex wraps any failure of the index store
	ErrIndex = errors.New("working copy index failure")

	// ErrNotExists is returned when opening an index that was never created
	ErrNotExists = errors.New("working copy index does not exist")
)

var pathPref = [5]byte{'p', 'a', 't', 'h', ':'}

const (
	manifestFile  = "MANIFEST"
	maxTxnEntries = 1000
)

func pathKey(pth string) []byte {
	return append(pathPref[:], []byte(pth)...)
}

func pathFromKey(key []byte) string {
	return string(bytes.TrimPrefix(key, pathPref[:]))
}

// Entry describes a file of the working copy as last recorded
type Entry struct {
	Path    string `json:"path"`
	OID     string `json:"oid"`
	Size    int64  `json:"size"`
	Mtime   int64  `json:"mtime"`
	Mode    uint32 `json:"mode"`
	Indexed int64  `json:"indexed"`
}

// Index is the dirty-tracking index
type Index struct {
	path  string
	db    *badger.DB
	maker *fingerprint.Maker
	l     *zap.Logger

	// entries modified less than this duration before being indexed are always hashed
	racyWindow time.Duration
}

// Exists tells if an index has been created at this location
func Exists(fs afero.Fs, pth string) bool {
	fi, err := fs.Stat(filepath.Join(pth, manifestFile))
	return err == nil && fi.Mode().IsRegular()
}

// Create a new empty index, or open an existing one
func Create(pth string, opts ...Option) (*Index, error) {
	if err := os.MkdirAll(pth, 0700); err != nil {
		return nil, errors.Detail(ErrIndex, "creating index directory", err)
	}
	return open(pth, opts...)
}

// Open an existing index
func Open(pth string, opts ...Option) (*Index, error) {
	if !Exists(afero.NewOsFs(), pth) {
		return nil, errors.New("no index at " + pth).Wrap(ErrNotExists)
	}
	return open(pth, opts...)
}

func open(pth string, opts ...Option) (*Index, error) {
	idx := &Index{
		path:       pth,
		maker:      fingerprint.New(),
		l:          zap.NewNop(),
		racyWindow: 2 * time.Second,
	}
	for _, apply := range opts {
		apply(idx)
	}

	db, err := badger.Open(
		badger.LSMOnlyOptions(pth).
			WithLogger(dlogger.NewBadgerLogger(idx.l)).
			WithLoggingLevel(badger.WARNING).
			WithNumVersionsToKeep(1),
	)
	if err != nil {
		return nil, errors.Detail(ErrIndex, "opening index at "+pth, err)
	}
	idx.db = db
	return idx, nil
}

// Path of the index store
func (x *Index) Path() string {
	return x.path
}

// Close the index store
func (x *Index) Close() error {
	if x.db == nil {
		return nil
	}
	err := x.db.Close()
	x.db = nil
	if err != nil {
		return errors.Detail(ErrIndex, "closing index", err)
	}
	return nil
}

func (x *Index) update(fn func(*badger.Txn) error) error {
	err := backoff.Retry(func() error {
		e := x.db.Update(fn)
		if e != nil && !errors.Is(e, badger.ErrConflict) {
			return backoff.Permanent(e)
		}
		return e
	},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), 10),
	)
	if err != nil {
		return errors.Detail(ErrIndex, "updating index", err)
	}
	return nil
}

// Get the entry for a path
func (x *Index) Get(pth string) (Entry, bool, error) {
	var entry Entry
	err := x.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get(pathKey(pth))
		if e != nil {
			return e
		}
		value, e := item.ValueCopy(nil)
		if e != nil {
			return e
		}
		return jsoniter.Unmarshal(value, &entry)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, errors.Detail(ErrIndex, "reading index entry "+pth, err)
	}
	return entry, true, nil
}

// Put some entries
func (x *Index) Put(entries ...Entry) error {
	return x.write(entries, nil)
}

// Delete the entries of some paths
func (x *Index) Delete(paths ...string) error {
	return x.write(nil, paths)
}

func (x *Index) write(puts []Entry, removes []string) error {
	if len(puts)+len(removes) == 0 {
		return nil
	}
	if len(puts)+len(removes) > maxTxnEntries {
		return x.writeBatch(puts, removes)
	}
	return x.update(func(txn *badger.Txn) error {
		for _, pth := range removes {
			if err := txn.Delete(pathKey(pth)); err != nil {
				return err
			}
		}
		for _, entry := range puts {
			data, err := jsoniter.Marshal(entry)
			if err != nil {
				return err
			}
			if err = txn.Set(pathKey(entry.Path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeBatch handles large updates, which would not fit in a single transaction
func (x *Index) writeBatch(puts []Entry, removes []string) error {
	wb := x.db.NewWriteBatch()
	defer wb.Cancel()

	for _, pth := range removes {
		if err := wb.Delete(pathKey(pth)); err != nil {
			return errors.Detail(ErrIndex, "updating index", err)
		}
	}
	for _, entry := range puts {
		data, err := jsoniter.Marshal(entry)
		if err != nil {
			return errors.Detail(ErrIndex, "updating index", err)
		}
		if err = wb.Set(pathKey(entry.Path), data); err != nil {
			return errors.Detail(ErrIndex, "updating index", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return errors.Detail(ErrIndex, "updating index", err)
	}
	return nil
}

// Entries returns all entries below some scope, sorted by path.
//
// The scope is a slash-separated file or directory path. The empty scope means everything.
func (x *Index) Entries(scope string) ([]Entry, error) {
	var entries []Entry
	prefix := pathKey(scope)
	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !inScope(scope, pathFromKey(item.Key())) {
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var entry Entry
			if err = jsoniter.Unmarshal(value, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Detail(ErrIndex, "listing index entries", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Clear removes all entries
func (x *Index) Clear() error {
	if err := x.db.DropAll(); err != nil {
		return errors.Detail(ErrIndex, "clearing index", err)
	}
	return nil
}

func inScope(scope, pth string) bool {
	if scope == "" || scope == pth {
		return true
	}
	return strings.HasPrefix(pth, strings.TrimSuffix(scope, "/")+"/")
}
