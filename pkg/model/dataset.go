package model

import (
	"path"
	"sort"
	"strings"
)

// OIDPrefix is the prefix of tile object identifiers
const OIDPrefix = "sha256:"

// TreeID identifies an immutable tree. The empty TreeID stands for "no tree".
type TreeID string

// IsEmpty is true when there is no tree
func (t TreeID) IsEmpty() bool {
	return t == ""
}

func (t TreeID) String() string {
	if t.IsEmpty() {
		return "<none>"
	}
	return string(t)
}

// CommitID identifies a commit
type CommitID string

// Tile describes the content of one tile of a dataset
type Tile struct {
	Name string `json:"name" yaml:"name"`
	OID  string `json:"oid" yaml:"oid"`
	Size int64  `json:"size" yaml:"size"`
	_    struct{}
}

// Equal tells if two tiles have the same content
func (t Tile) Equal(o Tile) bool {
	return t.Name == o.Name && t.OID == o.OID && t.Size == o.Size
}

// Hex returns the hexadecimal part of the tile oid
func (t Tile) Hex() string {
	return strings.TrimPrefix(t.OID, OIDPrefix)
}

// Dataset is a tile collection with a path in the repository
type Dataset struct {
	Path  string          `json:"path" yaml:"path"`
	Tiles map[string]Tile `json:"tiles" yaml:"tiles"`
}

// NewDataset builds a dataset at some path, with some tiles
func NewDataset(pth string, tiles ...Tile) *Dataset {
	d := &Dataset{
		Path:  CleanDatasetPath(pth),
		Tiles: make(map[string]Tile, len(tiles)),
	}
	for _, t := range tiles {
		d.Tiles[t.Name] = t
	}
	return d
}

// Tile returns the tile with this name, if any
func (d *Dataset) Tile(name string) (Tile, bool) {
	if d == nil {
		return Tile{}, false
	}
	t, ok := d.Tiles[name]
	return t, ok
}

// TileNames yields the sorted names of all tiles
func (d *Dataset) TileNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Tiles))
	for name := range d.Tiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filtered returns a copy of this dataset, restricted to the tiles matched by the filter
func (d *Dataset) Filtered(filter DatasetKeyFilter) *Dataset {
	if d == nil {
		return nil
	}
	res := NewDataset(d.Path)
	for name, t := range d.Tiles {
		if filter.Matches(name) {
			res.Tiles[name] = t
		}
	}
	return res
}

// Clone performs a shallow copy of the tiles map
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	res := NewDataset(d.Path)
	for name, t := range d.Tiles {
		res.Tiles[name] = t
	}
	return res
}

// TilePath is the slash-separated path of a tile, relative to the working copy root
func (d *Dataset) TilePath(name string) string {
	return path.Join(d.Path, name)
}

// Datasets indexes datasets by their path
type Datasets map[string]*Dataset

// Paths yields the sorted dataset paths
func (ds Datasets) Paths() []string {
	paths := make([]string, 0, len(ds))
	for p := range ds {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Add a dataset
func (ds Datasets) Add(d *Dataset) {
	ds[d.Path] = d
}

// FindPath returns the path of the dataset containing this working copy file path.
//
// The file path is slash-separated and relative to the working copy root.
func (ds Datasets) FindPath(filePath string) (string, bool) {
	return FindDatasetPath(ds.Paths(), filePath)
}

// FindDatasetPath returns the longest dataset path which is a directory prefix of filePath
func FindDatasetPath(datasetPaths []string, filePath string) (string, bool) {
	var (
		found string
		ok    bool
	)
	for _, p := range datasetPaths {
		if strings.HasPrefix(filePath, p+"/") && len(p) > len(found) {
			found, ok = p, true
		}
	}
	return found, ok
}

// CleanDatasetPath normalizes a dataset path to a slash-separated relative path
func CleanDatasetPath(pth string) string {
	pth = strings.ReplaceAll(pth, `\`, "/")
	pth = path.Clean("/" + pth)
	return strings.TrimPrefix(pth, "/")
}
