// Copyright © 2018 One Concern

package localfs

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

func TestHas(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	has, err := bs.Has(context.Background(), "sixteentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "seventeentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "fifteentons")
	require.NoError(t, err)
	require.False(t, has)
}

func TestGet(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	rdr, err := bs.Get(context.Background(), "sixteentons")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "this is the text", string(b))

	_, err = bs.Get(context.Background(), "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))
}

func TestKeys(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	keys, err := bs.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestDelete(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
	k, _ := bs.Keys(context.Background())
	assert.Len(t, k, 1)

	require.NoError(t, bs.Delete(context.Background(), "seventeentons"), "deleting twice is not an error")
}

func TestClear(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	require.NoError(t, bs.Clear(context.Background()))
	k, _ := bs.Keys(context.Background())
	require.Empty(t, k)
}

func TestPut(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	content := bytes.NewBufferString("here we go once again")
	err := bs.Put(context.Background(), "trees/eighteentons", content, storage.NoOverWrite)
	require.NoError(t, err)

	rdr, err := bs.Get(context.Background(), "trees/eighteentons")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())

	assert.Equal(t, "here we go once again", string(b))

	k, _ := bs.Keys(context.Background())
	assert.Len(t, k, 3)
	assert.Contains(t, k, "trees/eighteentons")

	err = bs.Put(context.Background(), "trees/eighteentons", bytes.NewBufferString("again"), storage.NoOverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	require.NoError(t, bs.Put(context.Background(), "trees/eighteentons", bytes.NewBufferString("again"), storage.OverWrite))
	rdr, err = bs.Get(context.Background(), "trees/eighteentons")
	require.NoError(t, err)
	b, _ = io.ReadAll(rdr)
	_ = rdr.Close()
	assert.Equal(t, "again", string(b))
}

func TestAtomicPut(t *testing.T) {
	fs := afero.NewMemMapFs()
	bs, err := NewAtomic(fs)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, bs.Put(ctx, "objects/"+strconv.Itoa(i%5), bytes.NewBufferString("same content"), storage.OverWrite))
		}(i)
	}
	wg.Wait()

	keys, err := bs.Keys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"objects/0", "objects/1", "objects/2", "objects/3", "objects/4"}, keys)

	staged, err := afero.ReadDir(fs, nestedPutStageName)
	require.NoError(t, err)
	assert.Empty(t, staged, "staging area should be empty after puts")

	err = bs.Put(ctx, "objects/0", bytes.NewBufferString("other"), storage.NoOverWrite)
	assert.True(t, errors.Is(err, status.ErrExists))

	_, err = bs.Has(ctx, nestedPutStageName+"/x")
	require.Error(t, err)

	require.NoError(t, bs.Clear(ctx))
	keys, err = bs.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	require.NoError(t, bs.Put(ctx, "again", bytes.NewBufferString("x"), storage.NoOverWrite))
}

func TestCopy(t *testing.T) {
	src, cleanup := setupStore(t)
	defer cleanup()
	dst := New(afero.NewMemMapFs())
	ctx := context.Background()

	require.NoError(t, storage.Copy(ctx, src, "sixteentons", dst, "copied"))
	require.NoError(t, storage.Copy(ctx, src, "sixteentons", dst, "copied"), "copying onto an existing key is a no-op")

	has, err := dst.Has(ctx, "copied")
	require.NoError(t, err)
	assert.True(t, has)

	err = storage.Copy(ctx, src, "missing", dst, "copied")
	assert.True(t, errors.Is(err, status.ErrNotExists))
}

func setupStore(t testing.TB) (storage.Store, func()) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "sixteentons", []byte("this is the text"), 0600))
	require.NoError(t, afero.WriteFile(fs, "seventeentons", []byte("this is the text for another thing"), 0600))

	return New(fs), func() {}
}
