package rand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetterString(t *testing.T) {
	s := LetterString(64)
	require.Len(t, s, 64)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(letters, r), "unexpected rune %q", r)
	}
	assert.NotEqual(t, s, LetterString(64))
}

func TestTiles(t *testing.T) {
	tiles := Tiles(10, 32, ".laz")
	require.Len(t, tiles, 10)
	for name, content := range tiles {
		assert.True(t, strings.HasSuffix(name, ".laz"))
		assert.Len(t, content, 32)
	}
}

func benchmarkBytes(b *testing.B, size int) {
	for n := 0; n < b.N; n++ {
		_ = Bytes(size)
	}
}

func BenchmarkBytes1000(b *testing.B)    { benchmarkBytes(b, 1000) }
func BenchmarkBytes1000000(b *testing.B) { benchmarkBytes(b, 1000000) }
