// Copyright © 2018 One Concern

// Package storage abstracts the key-value blob stores holding objects and tile content.
//
// Backends:
//   - local file system, for the repository metadata and file remotes
//   - S3 (AWS), for s3:// remotes
//   - GCS (Google), for gs:// remotes
package storage
