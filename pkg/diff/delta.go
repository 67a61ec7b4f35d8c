// Copyright © 2018 One Concern

// Package diff describes differences between two versions of the tiles of a dataset.
package diff

import (
	"fmt"
	"sort"

	"github.com/oneconcern/tilekeeper/pkg/model"
)

const (
	// Insert indicates a tile exists only on the new side
	Insert DeltaType = iota + 1
	// Update indicates a tile exists on both sides, possibly under another name
	Update
	// Delete indicates a tile exists only on the old side
	Delete
)

// DeltaType qualifies the type of difference between two versions of a tile
type DeltaType uint8

func (dt DeltaType) String() string {
	deltaTypeStrings := map[DeltaType]string{
		Insert: "A",
		Update: "U",
		Delete: "D",
	}
	return deltaTypeStrings[dt]
}

// Delta describes a single point of difference between two versions of a dataset.
//
// An insert has no old side, a delete has no new side, an update has both.
type Delta struct {
	Type     DeltaType
	OldKey   string
	OldValue *model.Tile
	NewKey   string
	NewValue *model.Tile
}

// InsertDelta builds the delta of a tile appearing
func InsertDelta(t model.Tile) Delta {
	return Delta{Type: Insert, NewKey: t.Name, NewValue: &t}
}

// DeleteDelta builds the delta of a tile disappearing
func DeleteDelta(t model.Tile) Delta {
	return Delta{Type: Delete, OldKey: t.Name, OldValue: &t}
}

// UpdateDelta builds the delta of a tile changing. The name may change too.
func UpdateDelta(old, updated model.Tile) Delta {
	return Delta{Type: Update, OldKey: old.Name, OldValue: &old, NewKey: updated.Name, NewValue: &updated}
}

// FromValues builds the delta between two optional values. The second result is false when both are absent.
func FromValues(old, updated *model.Tile) (Delta, bool) {
	switch {
	case old == nil && updated == nil:
		return Delta{}, false
	case old == nil:
		return InsertDelta(*updated), true
	case updated == nil:
		return DeleteDelta(*old), true
	default:
		return UpdateDelta(*old, *updated), true
	}
}

// Key identifies the delta within a dataset diff: the new name if any, the old name otherwise
func (d Delta) Key() string {
	if d.NewValue != nil {
		return d.NewKey
	}
	return d.OldKey
}

// IsRename is true for an update which changes the tile name
func (d Delta) IsRename() bool {
	return d.Type == Update && d.OldKey != d.NewKey
}

// IsNoop is true for an update that changes nothing
func (d Delta) IsNoop() bool {
	return d.Type == Update && !d.IsRename() && d.OldValue.Equal(*d.NewValue)
}

// Invert swaps the old and new sides
func (d Delta) Invert() Delta {
	res := Delta{
		OldKey:   d.NewKey,
		OldValue: d.NewValue,
		NewKey:   d.OldKey,
		NewValue: d.OldValue,
	}
	switch d.Type {
	case Insert:
		res.Type = Delete
	case Delete:
		res.Type = Insert
	default:
		res.Type = Update
	}
	return res
}

func (d Delta) String() string {
	if d.IsRename() {
		return fmt.Sprintf("R %s -> %s", d.OldKey, d.NewKey)
	}
	return fmt.Sprintf("%v %s", d.Type, d.Key())
}

// DatasetDiff holds all the tile deltas of a dataset, indexed by Key()
type DatasetDiff map[string]Delta

// Add a delta
func (dd DatasetDiff) Add(d Delta) {
	dd[d.Key()] = d
}

// Keys yields sorted delta keys
func (dd DatasetDiff) Keys() []string {
	keys := make([]string, 0, len(dd))
	for k := range dd {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sorted yields deltas by key order
func (dd DatasetDiff) Sorted() []Delta {
	res := make([]Delta, 0, len(dd))
	for _, k := range dd.Keys() {
		res = append(res, dd[k])
	}
	return res
}

// Invert builds the diff that undoes this one
func (dd DatasetDiff) Invert() DatasetDiff {
	res := make(DatasetDiff, len(dd))
	for _, d := range dd {
		res.Add(d.Invert())
	}
	return res
}

// Prune removes no-op deltas, in place
func (dd DatasetDiff) Prune() DatasetDiff {
	for k, d := range dd {
		if d.IsNoop() {
			delete(dd, k)
		}
	}
	return dd
}

// Counts the deltas of each type
func (dd DatasetDiff) Counts() map[DeltaType]int {
	res := make(map[DeltaType]int, 3)
	for _, d := range dd {
		res[d.Type]++
	}
	return res
}

// RepoDiff holds the diffs of several datasets, indexed by dataset path
type RepoDiff map[string]DatasetDiff

// Prune removes no-op deltas and empty dataset diffs, in place
func (rd RepoDiff) Prune() RepoDiff {
	for p, dd := range rd {
		if len(dd.Prune()) == 0 {
			delete(rd, p)
		}
	}
	return rd
}

// Paths yields sorted dataset paths
func (rd RepoDiff) Paths() []string {
	paths := make([]string, 0, len(rd))
	for p := range rd {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
