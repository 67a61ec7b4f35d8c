package model

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	// MetadataDir is the name of the repository metadata directory, at the root of the working copy
	MetadataDir = ".tilekeeper"

	// IndexDir is the name of the dirty-tracking index store, within the metadata directory
	IndexDir = "workdir-index"

	// StateFile is the name of the state table database, within the metadata directory
	StateFile = "workdir-state.db"

	// ConfigFile is the name of the repository configuration, within the metadata directory
	ConfigFile = "config.yaml"

	// ObjectsDir holds tree and commit descriptors, within the metadata directory
	ObjectsDir = "objects"

	// LFSObjectsDir holds tile content, within the metadata directory
	LFSObjectsDir = "lfs/objects"

	treeDescriptorDir   = "trees"
	commitDescriptorDir = "commits"
	headRef             = "refs/HEAD"
)

var isHexOID = regexp.MustCompile(`^[0-9a-f]{64}$`)

// GetTreeDescriptorKey is the object store key of a tree descriptor
func GetTreeDescriptorKey(id TreeID) string {
	return path.Join(treeDescriptorDir, string(id)+".yaml")
}

// GetCommitDescriptorKey is the object store key of a commit descriptor
func GetCommitDescriptorKey(id CommitID) string {
	return path.Join(commitDescriptorDir, string(id)+".yaml")
}

// GetHeadKey is the object store key of the HEAD reference
func GetHeadKey() string {
	return headRef
}

// ValidateOID checks that an oid has the form sha256:<64 hex digits>
func ValidateOID(oid string) error {
	if !strings.HasPrefix(oid, OIDPrefix) || !isHexOID.MatchString(strings.TrimPrefix(oid, OIDPrefix)) {
		return fmt.Errorf("invalid tile oid %q", oid)
	}
	return nil
}

// GetLFSObjectKey is the slash-separated path of a tile content in the LFS cache,
// relative to the LFS objects directory: ab/cd/abcd....
func GetLFSObjectKey(oid string) (string, error) {
	if err := ValidateOID(oid); err != nil {
		return "", err
	}
	hex := strings.TrimPrefix(oid, OIDPrefix)
	return path.Join(hex[0:2], hex[2:4], hex), nil
}

// OIDFromLFSObjectKey reverses GetLFSObjectKey
func OIDFromLFSObjectKey(key string) (string, error) {
	hex := path.Base(key)
	oid := OIDPrefix + hex
	if err := ValidateOID(oid); err != nil {
		return "", err
	}
	expected, _ := GetLFSObjectKey(oid)
	if expected != strings.TrimPrefix(path.Clean(key), "/") {
		return "", fmt.Errorf("path is invalid for an LFS object: %s", key)
	}
	return oid, nil
}
