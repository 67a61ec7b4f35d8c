package model

import (
	"time"
)

// CurrentDescriptorVersion is the version of tree and commit descriptors written by this version
const CurrentDescriptorVersion = 1

// TreeDescriptor is the persisted form of a tree.
//
// Datasets and tiles are sorted, so that equal trees have identical descriptors.
type TreeDescriptor struct {
	Version  uint64              `json:"version" yaml:"version"`
	Datasets []DatasetDescriptor `json:"datasets" yaml:"datasets"`
	_        struct{}
}

// DatasetDescriptor is the persisted form of a dataset
type DatasetDescriptor struct {
	Path  string `json:"path" yaml:"path"`
	Tiles []Tile `json:"tiles" yaml:"tiles"`
	_     struct{}
}

// NewTreeDescriptor builds the canonical descriptor of a set of datasets
func NewTreeDescriptor(ds Datasets) TreeDescriptor {
	td := TreeDescriptor{
		Version:  CurrentDescriptorVersion,
		Datasets: make([]DatasetDescriptor, 0, len(ds)),
	}
	for _, p := range ds.Paths() {
		d := ds[p]
		dd := DatasetDescriptor{Path: p, Tiles: make([]Tile, 0, len(d.Tiles))}
		for _, name := range d.TileNames() {
			dd.Tiles = append(dd.Tiles, d.Tiles[name])
		}
		td.Datasets = append(td.Datasets, dd)
	}
	return td
}

// ToDatasets rebuilds the datasets of a tree
func (td TreeDescriptor) ToDatasets() Datasets {
	ds := make(Datasets, len(td.Datasets))
	for _, dd := range td.Datasets {
		ds.Add(NewDataset(dd.Path, dd.Tiles...))
	}
	return ds
}

// Contributor who created the object
type Contributor struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	_     struct{}
}

func (c *Contributor) String() string {
	if c.Email == "" {
		return c.Name
	}
	if c.Name == "" {
		return c.Email
	}
	return c.Name + " <" + c.Email + ">"
}

// CommitDescriptor is the persisted form of a commit
type CommitDescriptor struct {
	Version     uint64      `json:"version" yaml:"version"`
	Tree        TreeID      `json:"tree" yaml:"tree"`
	Parents     []CommitID  `json:"parents,omitempty" yaml:"parents,omitempty"`
	Message     string      `json:"message" yaml:"message"`
	Timestamp   time.Time   `json:"timestamp" yaml:"timestamp"`
	Contributor Contributor `json:"contributor" yaml:"contributor"`
	_           struct{}
}

// CommitOption is a functor to build a commit descriptor with some options
type CommitOption func(*CommitDescriptor)

// Message defines the message of the commit
func Message(m string) CommitOption {
	return func(c *CommitDescriptor) {
		c.Message = m
	}
}

// Parents defines the parents of the commit
func Parents(p ...CommitID) CommitOption {
	return func(c *CommitDescriptor) {
		c.Parents = p
	}
}

// CommitContributor defines the author of the commit
func CommitContributor(author Contributor) CommitOption {
	return func(c *CommitDescriptor) {
		c.Contributor = author
	}
}

// Timestamp sets the time of the commit. It defaults to now.
func Timestamp(ts time.Time) CommitOption {
	return func(c *CommitDescriptor) {
		c.Timestamp = ts
	}
}

// NewCommitDescriptor builds a commit pointing to a tree
func NewCommitDescriptor(tree TreeID, opts ...CommitOption) CommitDescriptor {
	c := CommitDescriptor{
		Version:   CurrentDescriptorVersion,
		Tree:      tree,
		Timestamp: time.Now().UTC(),
	}
	for _, apply := range opts {
		apply(&c)
	}
	return c
}
