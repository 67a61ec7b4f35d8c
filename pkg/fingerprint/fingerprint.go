// Package fingerprint computes the identifiers of tiles and metadata objects.
//
// Tiles are identified by the sha256 of their content, in the format used by git-lfs
// pointers ("sha256:<hex>"). Trees and commits are identified by a blake2b digest
// of their canonical descriptor.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	units "github.com/docker/go-units"
	blake2b "github.com/minio/blake2b-simd"
	"github.com/spf13/afero"

	"github.com/oneconcern/tilekeeper/pkg/model"
)

// Option for the fingerprint maker
type Option func(*Maker)

// BufferSize sets the read buffer size when hashing files
func BufferSize(sz int64) Option {
	return func(m *Maker) {
		if sz > 0 {
			m.bufferSize = int(sz)
		}
	}
}

// Size sets the size of metadata digests, in bytes
func Size(sz uint8) Option {
	return func(m *Maker) {
		if sz > 0 && sz <= blake2b.Size {
			m.size = sz
		}
	}
}

// New fingerprint maker
func New(opts ...Option) *Maker {
	m := &Maker{
		bufferSize: int(256 * units.KiB),
		size:       32,
	}

	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Maker computes tile oids and metadata digests
type Maker struct {
	size       uint8
	bufferSize int
}

// Reader computes the oid of the content of a reader, and its size
func (m *Maker) Reader(r io.Reader) (oid string, size int64, err error) {
	h := sha256.New()
	size, err = io.CopyBuffer(h, r, make([]byte, m.bufferSize))
	if err != nil {
		return "", 0, err
	}
	return model.OIDPrefix + hex.EncodeToString(h.Sum(nil)), size, nil
}

// File computes the oid of a file and its size
func (m *Maker) File(fs afero.Fs, pth string) (oid string, size int64, err error) {
	f, err := fs.Open(pth)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = f.Close()
	}()
	return m.Reader(f)
}

// TeeWriter returns a writer that hashes everything written to it
func (m *Maker) TeeWriter() *Tee {
	return &Tee{h: sha256.New()}
}

// Tee hashes what is written to it, to compute the oid of streamed content
type Tee struct {
	h    hash.Hash
	size int64
}

func (t *Tee) Write(p []byte) (int, error) {
	n, err := t.h.Write(p)
	t.size += int64(n)
	return n, err
}

// OID of what has been written so far
func (t *Tee) OID() string {
	return model.OIDPrefix + hex.EncodeToString(t.h.Sum(nil))
}

// Size of what has been written so far
func (t *Tee) Size() int64 {
	return t.size
}

// Digest computes the blake2b digest of some metadata, as a hex string
func (m *Maker) Digest(data []byte) (string, error) {
	h, err := blake2b.New(&blake2b.Config{Size: m.size})
	if err != nil {
		return "", err
	}
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
