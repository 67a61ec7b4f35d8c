// Package sqlsession provides reentrant transactional sessions over a SQL database.
//
// A session opened while another one is active on the same Manager joins the active
// transaction. Only the outermost session commits or rolls back.
package sqlsession

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/errors"
)

// Manager hands out sessions on a database
type Manager struct {
	db *sqlx.DB
	l  *zap.Logger

	mu    sync.Mutex
	tx    *sqlx.Tx
	depth int
}

// New session manager
func New(db *sqlx.DB, l *zap.Logger) *Manager {
	if l == nil {
		l = zap.NewNop()
	}
	return &Manager{db: db, l: l}
}

// DB returns the underlying database handle
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// Depth is the number of nested sessions currently active
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth
}

func (m *Manager) enter(ctx context.Context) (*sqlx.Tx, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tx != nil {
		m.depth++
		return m.tx, false, nil
	}
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	m.tx = tx
	m.depth = 1
	return tx, true, nil
}

func (m *Manager) exit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.depth--
	if m.depth <= 0 {
		m.depth = 0
		m.tx = nil
	}
}

// Session runs fn inside a transaction.
//
// Nested calls, made from within fn, reuse the same transaction and never commit.
// The outermost call commits when fn succeeds, and rolls back on error or panic.
// Sessions are not meant to be shared across goroutines.
func (m *Manager) Session(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, outermost, err := m.enter(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		m.exit()
		if !outermost || committed {
			return
		}
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			m.l.Warn("could not roll back session", zap.Error(rerr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if !outermost {
		return nil
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
