// Package rand generates random content for test tiles.
package rand

import (
	"math/rand"
	"sync"
	"time"
)

const letters = "abcdefghijklmnopqrstuvwxyz0123456789"

var (
	mu   sync.Mutex
	rgen = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec
)

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	buf := make([]byte, n)
	mu.Lock()
	_, _ = rgen.Read(buf)
	mu.Unlock()
	return buf
}

// LetterString returns a random string picked in the [a-z]|[0-9] range
func LetterString(n int) string {
	buf := Bytes(n)
	for i, b := range buf {
		buf[i] = letters[int(b)%len(letters)]
	}
	return string(buf)
}

// Tiles returns n random tile contents of the given size, keyed by tile name
func Tiles(n, size int, ext string) map[string][]byte {
	res := make(map[string][]byte, n)
	for len(res) < n {
		res[LetterString(8)+ext] = Bytes(size)
	}
	return res
}
