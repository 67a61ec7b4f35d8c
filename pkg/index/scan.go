package index

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/errors"
)

const (
	// Added indicates an untracked file
	Added FileStatus = iota + 1
	// Modified indicates a file whose content differs from its entry
	Modified
	// Deleted indicates an entry whose file is gone
	Deleted
)

// FileStatus qualifies how a working copy file differs from the index
type FileStatus uint8

func (s FileStatus) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileDelta describes a working copy file that differs from the index.
//
// Old is the index entry (absent for Added), New is the observed file (absent for Deleted).
type FileDelta struct {
	Path   string
	Status FileStatus
	Old    *Entry
	New    *Entry
}

// Workdir locates the working copy files the index tracks
type Workdir struct {
	Fs   afero.Fs
	Root string
	// Exclude lists top-level directory names that are never part of the working copy
	Exclude []string
}

func (w Workdir) abs(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

func (w Workdir) excluded(rel string) bool {
	top := strings.SplitN(rel, "/", 2)[0]
	for _, ex := range w.Exclude {
		if top == ex {
			return true
		}
	}
	return false
}

// files lists the regular files below a scope, as slash-separated relative paths
func (w Workdir) files(ctx context.Context, scope string) (map[string]os.FileInfo, error) {
	res := make(map[string]os.FileInfo)
	start := w.abs(scope)
	fi, err := w.Fs.Stat(start)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return nil, err
	}
	if !fi.IsDir() {
		if fi.Mode().IsRegular() && !w.excluded(scope) {
			res[scope] = fi
		}
		return res, nil
	}
	err = afero.Walk(w.Fs, start, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if e := ctx.Err(); e != nil {
			return e
		}
		rel, err := filepath.Rel(w.Root, pth)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if w.excluded(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			res[rel] = info
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (x *Index) observe(w Workdir, rel string, info os.FileInfo) (Entry, error) {
	oid, size, err := x.maker.File(w.Fs, w.abs(rel))
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Path:    rel,
		OID:     oid,
		Size:    size,
		Mtime:   info.ModTime().UnixNano(),
		Mode:    uint32(info.Mode().Perm()),
		Indexed: time.Now().UnixNano(),
	}, nil
}

// statClean tells if the stat information of a file can prove it unchanged since indexed
func (x *Index) statClean(entry Entry, info os.FileInfo) bool {
	if entry.Size != info.Size() || entry.Mtime != info.ModTime().UnixNano() || entry.Mode != uint32(info.Mode().Perm()) {
		return false
	}
	return entry.Indexed-entry.Mtime >= int64(x.racyWindow)
}

func normalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{""}
	}
	res := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.Trim(filepath.ToSlash(s), "/")
		if s == "." {
			s = ""
		}
		res = append(res, s)
	}
	sort.Strings(res)
	// drop scopes nested in another one
	pruned := res[:0]
	for _, s := range res {
		if len(pruned) > 0 && inScope(pruned[len(pruned)-1], s) {
			continue
		}
		pruned = append(pruned, s)
	}
	return pruned
}

// Diff compares the working copy with the index, below some scopes.
//
// Files are hashed only when their stat information does not match their entry. When a file
// has a new stat but the same content, its entry is refreshed so that the next diff is cheaper.
// No scope means the whole working copy.
func (x *Index) Diff(ctx context.Context, w Workdir, scopes ...string) ([]FileDelta, error) {
	var (
		deltas  []FileDelta
		refresh []Entry
	)
	for _, scope := range normalizeScopes(scopes) {
		entries, err := x.Entries(scope)
		if err != nil {
			return nil, err
		}
		files, err := w.files(ctx, scope)
		if err != nil {
			return nil, errors.Detail(ErrIndex, "scanning working copy", err)
		}

		for i := range entries {
			entry := entries[i]
			info, ok := files[entry.Path]
			if !ok {
				deltas = append(deltas, FileDelta{Path: entry.Path, Status: Deleted, Old: &entry})
				continue
			}
			delete(files, entry.Path)
			if x.statClean(entry, info) {
				continue
			}
			observed, err := x.observe(w, entry.Path, info)
			if err != nil {
				return nil, errors.Detail(ErrIndex, "hashing "+entry.Path, err)
			}
			if observed.OID == entry.OID && observed.Size == entry.Size {
				refresh = append(refresh, observed)
				continue
			}
			deltas = append(deltas, FileDelta{Path: entry.Path, Status: Modified, Old: &entry, New: &observed})
		}

		for rel, info := range files {
			observed, err := x.observe(w, rel, info)
			if err != nil {
				return nil, errors.Detail(ErrIndex, "hashing "+rel, err)
			}
			deltas = append(deltas, FileDelta{Path: rel, Status: Added, New: &observed})
		}
	}

	if len(refresh) > 0 {
		x.l.Debug("refreshing stat information", zap.Int("entries", len(refresh)))
		if err := x.Put(refresh...); err != nil {
			return nil, err
		}
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Path < deltas[j].Path })
	return deltas, nil
}

// Reset rewrites the entries of some paths from the working copy: files present on disk get
// an entry with their current oid and stat, entries of missing files are removed.
//
// Paths may be files or directories. Nothing is written to the working copy.
func (x *Index) Reset(ctx context.Context, w Workdir, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	var (
		puts    []Entry
		removes []string
	)
	for _, scope := range normalizeScopes(paths) {
		entries, err := x.Entries(scope)
		if err != nil {
			return err
		}
		files, err := w.files(ctx, scope)
		if err != nil {
			return errors.Detail(ErrIndex, "scanning working copy", err)
		}
		for _, entry := range entries {
			if _, ok := files[entry.Path]; !ok {
				removes = append(removes, entry.Path)
			}
		}
		for rel, info := range files {
			observed, err := x.observe(w, rel, info)
			if err != nil {
				return errors.Detail(ErrIndex, "hashing "+rel, err)
			}
			puts = append(puts, observed)
		}
	}
	x.l.Debug("resetting index entries", zap.Int("updated", len(puts)), zap.Int("removed", len(removes)))
	return x.write(puts, removes)
}
