// Copyright © 2018 One Concern

package diff

import (
	"github.com/oneconcern/tilekeeper/pkg/model"
)

// Datasets computes the differences between two versions of a dataset,
// restricted to the tiles matched by the filter.
//
// Either side may be nil, standing for a dataset that does not exist. Renames are not detected.
func Datasets(old, updated *model.Dataset, filter model.DatasetKeyFilter) DatasetDiff {
	res := make(DatasetDiff)
	if old != nil {
		for name, oldTile := range old.Tiles {
			if !filter.Matches(name) {
				continue
			}
			newTile, ok := updated.Tile(name)
			if !ok {
				res.Add(DeleteDelta(oldTile))
				continue
			}
			if !oldTile.Equal(newTile) {
				res.Add(UpdateDelta(oldTile, newTile))
			}
		}
	}
	if updated != nil {
		for name, newTile := range updated.Tiles {
			if !filter.Matches(name) {
				continue
			}
			if _, ok := old.Tile(name); !ok {
				res.Add(InsertDelta(newTile))
			}
		}
	}
	return res
}

// Concat composes a diff from X to Y with a diff from Y to Z, yielding the diff from X to Z.
//
// Renames are split into a delete and an insert before composition.
func Concat(first, second DatasetDiff) DatasetDiff {
	touched := make(map[string]struct{})

	// the state of each name before "first", and after "first"
	before := make(map[string]*model.Tile)
	middle := make(map[string]*model.Tile)
	for _, d := range first {
		if d.OldValue != nil {
			before[d.OldKey] = d.OldValue
			touched[d.OldKey] = struct{}{}
			if _, ok := middle[d.OldKey]; !ok {
				middle[d.OldKey] = nil
			}
		}
		if d.NewValue != nil {
			middle[d.NewKey] = d.NewValue
			touched[d.NewKey] = struct{}{}
			if _, ok := before[d.NewKey]; !ok {
				before[d.NewKey] = nil
			}
		}
	}

	after := make(map[string]*model.Tile)
	for _, d := range second {
		if d.OldValue != nil {
			touched[d.OldKey] = struct{}{}
			if _, ok := after[d.OldKey]; !ok {
				after[d.OldKey] = nil
			}
			if _, ok := middle[d.OldKey]; !ok {
				// unchanged by first: the old value of second is the original one
				before[d.OldKey] = d.OldValue
				middle[d.OldKey] = d.OldValue
			}
		}
		if d.NewValue != nil {
			touched[d.NewKey] = struct{}{}
			after[d.NewKey] = d.NewValue
			if _, ok := middle[d.NewKey]; !ok {
				before[d.NewKey] = nil
				middle[d.NewKey] = nil
			}
		}
	}

	res := make(DatasetDiff, len(touched))
	for name := range touched {
		final, ok := after[name]
		if !ok {
			final = middle[name]
		}
		d, ok := FromValues(before[name], final)
		if !ok || d.IsNoop() {
			continue
		}
		res.Add(d)
	}
	return res
}
