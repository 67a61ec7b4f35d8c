package sqlsession

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/tilekeeper/pkg/errors"
)

func setupMock(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock"), nil), mock
}

func TestSessionCommits(t *testing.T) {
	m, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO u").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := m.Session(ctx, func(outer *sqlx.Tx) error {
		assert.Equal(t, 1, m.Depth())
		if _, err := outer.ExecContext(ctx, "INSERT INTO t VALUES (1)"); err != nil {
			return err
		}
		return m.Session(ctx, func(inner *sqlx.Tx) error {
			assert.Same(t, outer, inner, "nested sessions share the transaction")
			assert.Equal(t, 2, m.Depth())
			_, err := inner.ExecContext(ctx, "INSERT INTO u VALUES (1)")
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Depth())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRollsBackOnNestedError(t *testing.T) {
	m, mock := setupMock(t)
	ctx := context.Background()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := m.Session(ctx, func(_ *sqlx.Tx) error {
		return m.Session(ctx, func(_ *sqlx.Tx) error {
			return boom
		})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 0, m.Depth())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRollsBackOnPanic(t *testing.T) {
	m, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = m.Session(ctx, func(_ *sqlx.Tx) error {
			panic("boom")
		})
	})
	assert.Equal(t, 0, m.Depth())
	require.NoError(t, mock.ExpectationsWereMet())

	// a new session starts afresh
	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, m.Session(ctx, func(_ *sqlx.Tx) error { return nil }))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionBeginFails(t *testing.T) {
	m, mock := setupMock(t)

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))
	err := m.Session(context.Background(), func(_ *sqlx.Tx) error {
		t.Fatal("must not be called")
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, m.Depth())
}
