package model

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oneconcern/tilekeeper/pkg/errors"
)

// ErrInvalidFilter is returned when a key filter cannot be parsed
var ErrInvalidFilter = errors.New("invalid key filter")

// DatasetKeyFilter selects tiles within one dataset.
//
// The zero value matches nothing.
type DatasetKeyFilter struct {
	all      bool
	patterns []string
}

// MatchAllTiles is the dataset filter that matches every tile
var MatchAllTiles = DatasetKeyFilter{all: true}

// TileFilter builds a dataset filter matching some tile names or doublestar patterns
func TileFilter(patterns ...string) DatasetKeyFilter {
	return DatasetKeyFilter{patterns: append([]string(nil), patterns...)}
}

// MatchAll is true when this filter matches every tile
func (f DatasetKeyFilter) MatchAll() bool {
	return f.all
}

// IsEmpty is true when this filter matches no tile
func (f DatasetKeyFilter) IsEmpty() bool {
	return !f.all && len(f.patterns) == 0
}

// Matches tells if the tile name is selected by this filter
func (f DatasetKeyFilter) Matches(tileName string) bool {
	if f.all {
		return true
	}
	for _, p := range f.patterns {
		if p == tileName {
			return true
		}
		if ok, _ := doublestar.Match(p, tileName); ok {
			return true
		}
	}
	return false
}

func (f DatasetKeyFilter) union(o DatasetKeyFilter) DatasetKeyFilter {
	if f.all || o.all {
		return MatchAllTiles
	}
	return TileFilter(append(append([]string(nil), f.patterns...), o.patterns...)...)
}

func (f DatasetKeyFilter) String() string {
	if f.all {
		return "*"
	}
	return strings.Join(f.patterns, ",")
}

// RepoKeyFilter selects datasets, and tiles within datasets.
//
// Dataset keys may be doublestar patterns. The zero value matches nothing.
type RepoKeyFilter struct {
	all      bool
	datasets map[string]DatasetKeyFilter
}

// MatchAll is the repository filter that matches everything
var MatchAll = RepoKeyFilter{all: true}

// NewRepoKeyFilter builds an empty filter, to be populated with Include
func NewRepoKeyFilter() RepoKeyFilter {
	return RepoKeyFilter{datasets: make(map[string]DatasetKeyFilter)}
}

// Include adds a dataset (or dataset pattern) to this filter, restricted by a dataset filter.
func (f RepoKeyFilter) Include(datasetPattern string, tiles DatasetKeyFilter) RepoKeyFilter {
	if f.all {
		return f
	}
	res := NewRepoKeyFilter()
	for k, v := range f.datasets {
		res.datasets[k] = v
	}
	key := CleanDatasetPath(datasetPattern)
	if existing, ok := res.datasets[key]; ok {
		tiles = existing.union(tiles)
	}
	res.datasets[key] = tiles
	return res
}

// MatchAll is true when this filter matches everything
func (f RepoKeyFilter) MatchAll() bool {
	return f.all
}

// Dataset returns the filter that applies to tiles of the dataset at this path.
//
// A dataset not selected yields an empty dataset filter.
func (f RepoKeyFilter) Dataset(datasetPath string) DatasetKeyFilter {
	if f.all {
		return MatchAllTiles
	}
	var res DatasetKeyFilter
	for pattern, tiles := range f.datasets {
		if pattern == datasetPath {
			res = res.union(tiles)
			continue
		}
		if ok, _ := doublestar.Match(pattern, datasetPath); ok {
			res = res.union(tiles)
		}
	}
	return res
}

// MatchesDataset tells if any tile of the dataset at this path may be selected
func (f RepoKeyFilter) MatchesDataset(datasetPath string) bool {
	return !f.Dataset(datasetPath).IsEmpty()
}

// MatchesTile tells if a given tile of a dataset is selected
func (f RepoKeyFilter) MatchesTile(datasetPath, tileName string) bool {
	return f.Dataset(datasetPath).Matches(tileName)
}

// Filter restricts a set of datasets to what this filter selects.
//
// Datasets left with no tile by a partial dataset filter are kept, empty.
func (f RepoKeyFilter) Filter(ds Datasets) Datasets {
	res := make(Datasets, len(ds))
	for p, d := range ds {
		df := f.Dataset(p)
		switch {
		case df.MatchAll():
			res[p] = d
		case df.IsEmpty():
			continue
		default:
			res[p] = d.Filtered(df)
		}
	}
	return res
}

func (f RepoKeyFilter) String() string {
	if f.all {
		return "*"
	}
	keys := make([]string, 0, len(f.datasets))
	for k := range f.datasets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		df := f.datasets[k]
		if df.MatchAll() {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, k+":"+df.String())
	}
	return strings.Join(parts, " ")
}

// ParseRepoKeyFilter builds a filter from command line arguments.
//
// Each argument is either "dataset" or "dataset:tile". Both parts accept doublestar patterns.
// No argument at all means "match all".
func ParseRepoKeyFilter(args []string) (RepoKeyFilter, error) {
	if len(args) == 0 {
		return MatchAll, nil
	}
	res := NewRepoKeyFilter()
	for _, arg := range args {
		dsPart, tilePart, hasTile := strings.Cut(arg, ":")
		if dsPart == "" || (hasTile && tilePart == "") {
			return RepoKeyFilter{}, errors.Errorf("invalid filter %q: expected dataset[:tile]", arg).Wrap(ErrInvalidFilter)
		}
		if !doublestar.ValidatePattern(dsPart) {
			return RepoKeyFilter{}, errors.Errorf("invalid dataset pattern %q", dsPart).Wrap(ErrInvalidFilter)
		}
		tiles := MatchAllTiles
		if hasTile {
			if !doublestar.ValidatePattern(tilePart) {
				return RepoKeyFilter{}, errors.Errorf("invalid tile pattern %q", tilePart).Wrap(ErrInvalidFilter)
			}
			tiles = TileFilter(tilePart)
		}
		res = res.Include(dsPart, tiles)
	}
	return res, nil
}
