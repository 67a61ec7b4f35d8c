// Package model describes the base objects manipulated by tilekeeper.
//
// The object model for tilekeeper is composed of:
//
//  Tiles:
//    A tile is a large binary file (typically a point cloud) addressed by the sha256 of its content (its oid).
//    Tile content lives in the LFS cache, not in the object database.
//
//  Datasets:
//    A dataset is a named collection of tiles, identified by its path in the repository.
//    On the working copy, the tiles of a dataset are materialized as <dataset path>/<tile name>.
//
//  Trees:
//    A tree is an immutable snapshot of all datasets, identified by the digest of its descriptor.
//
//  Commits:
//    A commit points to a tree, with parents and a message. This is analogous to a commit in git.
//
//  Key filters:
//    A key filter restricts an operation to some datasets, or to some tiles within a dataset.
package model
