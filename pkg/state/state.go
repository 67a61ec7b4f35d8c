// Package state implements the state table of a file system working copy.
//
// The table is a tiny key/value store held in a SQLite file. The row ("*", "tree") records
// which tree the working copy currently represents. No such row means no tree is checked out.
package state

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/sqlsession"
)

const (
	// AnyTable is the table name of rows which are not specific to a table
	AnyTable = "*"

	// TreeKey is the key of the row recording the current tree
	TreeKey = "tree"

	driverName = "sqlite"

	createTable = `CREATE TABLE IF NOT EXISTS workdir_state (
	table_name TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (table_name, key)
)`

	selectValue = `SELECT value FROM workdir_state WHERE table_name = ? AND key = ?`

	upsertValue = `INSERT INTO workdir_state (table_name, key, value) VALUES (?, ?, ?)
ON CONFLICT (table_name, key) DO UPDATE SET value = excluded.value`
)

var (
	// ErrState wraps any failure of the state table
	ErrState = errors.New("working copy state table failure")

	// ErrNotExists is returned when opening a state table that was never created
	ErrNotExists = errors.New("working copy state table does not exist")
)

// Table is the working copy state table
type Table struct {
	path     string
	db       *sqlx.DB
	sessions *sqlsession.Manager
	l        *zap.Logger
}

// Option for the state table
type Option func(*Table)

// Logger for the state table
func Logger(l *zap.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.l = l
		}
	}
}

// Exists tells if a state table file is present
func Exists(fs afero.Fs, pth string) bool {
	fi, err := fs.Stat(pth)
	return err == nil && fi.Mode().IsRegular()
}

// Create the state table file with its schema. Creating an existing table is a no-op.
func Create(ctx context.Context, pth string, opts ...Option) (*Table, error) {
	if err := os.MkdirAll(filepath.Dir(pth), 0700); err != nil {
		return nil, errors.Detail(ErrState, "creating state table directory", err)
	}
	t, err := open(pth, opts...)
	if err != nil {
		return nil, err
	}
	err = t.Session(ctx, func(tx *sqlx.Tx) error {
		_, e := tx.ExecContext(ctx, createTable)
		return e
	})
	if err != nil {
		_ = t.Close()
		return nil, errors.Detail(ErrState, "creating state table", err)
	}
	return t, nil
}

// Open an existing state table
func Open(pth string, opts ...Option) (*Table, error) {
	if !Exists(afero.NewOsFs(), pth) {
		return nil, errors.New("no state table at " + pth).Wrap(ErrNotExists)
	}
	return open(pth, opts...)
}

func open(pth string, opts ...Option) (*Table, error) {
	t := &Table{
		path: pth,
		l:    zap.NewNop(),
	}
	for _, apply := range opts {
		apply(t)
	}

	db, err := sqlx.Open(driverName, pth)
	if err != nil {
		return nil, errors.Detail(ErrState, "opening state table at "+pth, err)
	}
	// a single connection serializes writers on the sqlite file
	db.SetMaxOpenConns(1)

	t.db = db
	t.sessions = sqlsession.New(db, t.l)
	return t, nil
}

// Path to the state table file
func (t *Table) Path() string {
	return t.path
}

// Close the state table
func (t *Table) Close() error {
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	if err != nil {
		return errors.Detail(ErrState, "closing state table", err)
	}
	return nil
}

// Session runs fn in a reentrant transactional session.
//
// See sqlsession.Manager.Session.
func (t *Table) Session(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return t.sessions.Session(ctx, fn)
}

// Value returns the value of some key, and whether it was found
func (t *Table) Value(ctx context.Context, table, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := t.Session(ctx, func(tx *sqlx.Tx) error {
		e := tx.GetContext(ctx, &value, selectValue, table, key)
		switch {
		case e == nil:
			found = true
			return nil
		case errors.Is(e, sql.ErrNoRows):
			return nil
		default:
			return e
		}
	})
	if err != nil {
		return "", false, errors.Detail(ErrState, "reading state "+table+"/"+key, err)
	}
	return value, found, nil
}

// SetValue inserts or updates the value of some key
func (t *Table) SetValue(ctx context.Context, table, key, value string) error {
	err := t.Session(ctx, func(tx *sqlx.Tx) error {
		_, e := tx.ExecContext(ctx, upsertValue, table, key, value)
		return e
	})
	if err != nil {
		return errors.Detail(ErrState, "writing state "+table+"/"+key, err)
	}
	return nil
}

// Tree returns the tree recorded for the working copy. The empty tree means no tree.
func (t *Table) Tree(ctx context.Context) (model.TreeID, error) {
	value, _, err := t.Value(ctx, AnyTable, TreeKey)
	if err != nil {
		return "", err
	}
	return model.TreeID(value), nil
}

// SetTree records the tree the working copy represents. The empty tree records that no tree
// is checked out.
func (t *Table) SetTree(ctx context.Context, tree model.TreeID) error {
	t.l.Debug("updating working copy tree", zap.Stringer("tree", tree))
	return t.SetValue(ctx, AnyTable, TreeKey, string(tree))
}
