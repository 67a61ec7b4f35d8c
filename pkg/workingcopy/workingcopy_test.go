package workingcopy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

type partMock struct {
	mock.Mock
	typ string
}

func (m *partMock) Type() string   { return m.typ }
func (m *partMock) String() string { return m.typ + " part" }

func (m *partMock) Status(ctx context.Context) (Status, error) {
	args := m.Called(ctx)
	return args.Get(0).(Status), args.Error(1)
}

func (m *partMock) CheckValidState(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *partMock) Create(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *partMock) Delete(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *partMock) Tree(ctx context.Context) (model.TreeID, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.TreeID), args.Error(1)
}

func (m *partMock) Reset(ctx context.Context, target model.TreeID, opts ...ResetOption) error {
	o := ApplyResetOptions(opts...)
	return m.Called(ctx, target, o.TrackChangesAsDirty).Error(0)
}

func (m *partMock) IsDirty(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *partMock) Close() error {
	return m.Called().Error(0)
}

func TestParts(t *testing.T) {
	fs, db := &partMock{typ: "filesystem"}, &partMock{typ: "postgresql"}
	wc := New(fs, nil, db)
	require.Len(t, wc.Parts(), 2)

	p, ok := wc.Part("postgresql")
	require.True(t, ok)
	assert.Equal(t, db, p)
	_, ok = wc.Part("mysql")
	assert.False(t, ok)

	fs.On("Close").Return(nil)
	db.On("Close").Return(errors.New("closing"))
	require.Error(t, wc.Close())
	fs.AssertExpectations(t)
}

func TestAssertCreated(t *testing.T) {
	ctx := context.Background()
	fs, db := &partMock{typ: "filesystem"}, &partMock{typ: "postgresql"}
	fs.On("CheckValidState", ctx).Return(nil)
	fs.On("Status", ctx).Return(Created, nil)
	db.On("CheckValidState", ctx).Return(nil)
	db.On("Status", ctx).Return(Uncreated, nil)

	err := New(fs, db).AssertCreated(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotCreated))
	assert.Contains(t, err.Error(), "postgresql part has not been created")
	assert.Equal(t, status.ExitNoWorkingCopy, errors.Code(err))

	require.NoError(t, New(fs).AssertCreated(ctx))
}

func TestCheckValidState(t *testing.T) {
	ctx := context.Background()
	fs := &partMock{typ: "filesystem"}
	fs.On("CheckValidState", ctx).Return(errors.New("index is missing").Wrap(status.ErrCorrupt))

	err := New(fs).CheckValidState(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrCorrupt))
}

func TestResetAndDirty(t *testing.T) {
	ctx := context.Background()
	tree := model.TreeID("0a1b2c")
	fs, db := &partMock{typ: "filesystem"}, &partMock{typ: "postgresql"}
	fs.On("Reset", ctx, tree, true).Return(nil).Once()
	db.On("Reset", ctx, tree, true).Return(nil).Once()
	wc := New(fs, db)

	require.NoError(t, wc.Reset(ctx, tree, TrackChangesAsDirty(true)))
	fs.AssertExpectations(t)
	db.AssertExpectations(t)

	fs.On("IsDirty", ctx).Return(false, nil)
	db.On("IsDirty", ctx).Return(true, nil)
	dirty, err := wc.IsDirty(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestResetStopsOnError(t *testing.T) {
	ctx := context.Background()
	tree := model.TreeID("0a1b2c")
	fs, db := &partMock{typ: "filesystem"}, &partMock{typ: "postgresql"}
	fs.On("Reset", ctx, tree, false).Return(errors.New("disk full"))

	require.Error(t, New(fs, db).Reset(ctx, tree))
	db.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyResetOptions(t *testing.T) {
	o := ApplyResetOptions(Warnings(nil))
	assert.True(t, o.KeyFilter.MatchAll())
	assert.False(t, o.RewriteFull)
	assert.NotPanics(t, func() { o.Warnings(errors.New("ignored")) })

	filter := model.NewRepoKeyFilter().Include("nz/auckland", model.MatchAllTiles)
	o = ApplyResetOptions(KeyFilter(filter), RewriteFull(true))
	assert.False(t, o.KeyFilter.MatchAll())
	assert.True(t, o.RewriteFull)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "uncreated", Uncreated.String())
	assert.Equal(t, "partially created", PartiallyCreated.String())
	assert.Equal(t, "created", Created.String())
}
