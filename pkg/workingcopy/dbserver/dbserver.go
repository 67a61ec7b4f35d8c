// Package dbserver implements working copies held in a schema of a database server.
//
// The working copy owns one schema, given by a URI of the form scheme://[HOST]/DBNAME/DBSCHEMA.
// The schema holds two bookkeeping tables: _sno_state records the tree checked out, and
// _sno_track records the rows changed since.
package dbserver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/sqlsession"
	"github.com/oneconcern/tilekeeper/pkg/state"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

// Names of the bookkeeping tables
const (
	StateTable = "_sno_state"
	TrackTable = "_sno_track"
)

var _ workingcopy.Part = &WorkingCopy{}

// WorkingCopy is a working copy in a database server schema
type WorkingCopy struct {
	uri     string
	dbURI   *url.URL
	schema  string
	dialect *Dialect
	l       *zap.Logger

	workdirPath string

	mu       sync.Mutex
	db       *sqlx.DB
	sessions *sqlsession.Manager
}

// Option for a database server working copy
type Option func(*WorkingCopy)

// Logger for the working copy
func Logger(l *zap.Logger) Option {
	return func(w *WorkingCopy) {
		if l != nil {
			w.l = l
		}
	}
}

// WorkdirPath is the directory of the repository, used to suggest a default schema
func WorkdirPath(pth string) Option {
	return func(w *WorkingCopy) {
		w.workdirPath = pth
	}
}

// WithDB uses an already opened database instead of connecting to the URI
func WithDB(db *sqlx.DB) Option {
	return func(w *WorkingCopy) {
		w.db = db
	}
}

// New database server working copy at some URI. The database is not contacted.
func New(uri string, opts ...Option) (*WorkingCopy, error) {
	w := &WorkingCopy{
		uri: uri,
		l:   zap.NewNop(),
	}
	for _, apply := range opts {
		apply(w)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.New("invalid working copy URI").Wrap(status.ErrUsage)
	}
	d, ok := DialectFor(u.Scheme)
	if !ok {
		return nil, errors.New(fmt.Sprintf("unsupported working copy URI scheme %q", u.Scheme)).Wrap(status.ErrUsage)
	}
	if err = CheckValidURI(uri, d, w.workdirPath); err != nil {
		return nil, err
	}
	dbURI, schema, err := SplitSchema(uri)
	if err != nil {
		return nil, err
	}
	w.dialect = d
	w.schema = schema
	w.dbURI, _ = url.Parse(dbURI)
	if w.db != nil {
		w.sessions = sqlsession.New(w.db, w.l)
	}
	return w, nil
}

// Type of working copy
func (w *WorkingCopy) Type() string {
	return w.dialect.Scheme
}

// String is the URI of the working copy, without password
func (w *WorkingCopy) String() string {
	u, err := url.Parse(w.uri)
	if err != nil {
		return w.uri
	}
	return u.Redacted()
}

// Schema owned by the working copy
func (w *WorkingCopy) Schema() string {
	return w.schema
}

// Dialect of the database server
func (w *WorkingCopy) Dialect() *Dialect {
	return w.dialect
}

func (w *WorkingCopy) connectionError(err error) error {
	msg := fmt.Sprintf("Error connecting to %s working copy at %s", w.dialect.TypeName, w)
	return errors.Detail(status.ErrConnection, msg, err)
}

// wrapError qualifies a database error, telling connection failures apart
func (w *WorkingCopy) wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if w.dialect.connErr(err) {
		return w.connectionError(err)
	}
	var e *errors.Error
	if errors.As(err, &e) {
		return err
	}
	return errors.New(fmt.Sprintf("%s in %s working copy at %s: %v", op, w.dialect.TypeName, w, err))
}

func (w *WorkingCopy) manager() (*sqlsession.Manager, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sessions != nil {
		return w.sessions, nil
	}
	db, err := sqlx.Open(w.dialect.driver, w.dialect.dsn(w.dbURI, strings.TrimPrefix(w.dbURI.Path, "/")))
	if err != nil {
		return nil, w.connectionError(err)
	}
	w.db = db
	w.sessions = sqlsession.New(db, w.l)
	return w.sessions, nil
}

// Session runs fn in a reentrant transactional session
func (w *WorkingCopy) Session(ctx context.Context, fn func(*sqlx.Tx) error) error {
	m, err := w.manager()
	if err != nil {
		return err
	}
	return w.wrapError("session", m.Session(ctx, fn))
}

func (w *WorkingCopy) table(name string) string {
	return w.dialect.QualifiedName(w.schema, name)
}

func (w *WorkingCopy) countTables(ctx context.Context, clause string, args ...interface{}) (int, error) {
	var count int
	err := w.Session(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ?" + clause)
		return tx.GetContext(ctx, &count, q, append([]interface{}{w.schema}, args...)...)
	})
	return count, err
}

// IsCreated is true when the schema exists and holds at least one table.
//
// An empty schema counts as not created, so that it may be created ahead of the working copy.
func (w *WorkingCopy) IsCreated(ctx context.Context) (bool, error) {
	count, err := w.countTables(ctx, "")
	return count > 0, err
}

// IsInitialised is true when the schema holds both bookkeeping tables
func (w *WorkingCopy) IsInitialised(ctx context.Context) (bool, error) {
	count, err := w.countTables(ctx, " AND table_name IN (?, ?)", StateTable, TrackTable)
	return count == 2, err
}

// HasData is true when the schema holds tables other than the bookkeeping ones
func (w *WorkingCopy) HasData(ctx context.Context) (bool, error) {
	count, err := w.countTables(ctx, " AND table_name NOT IN (?, ?)", StateTable, TrackTable)
	return count > 0, err
}

// Status of the working copy
func (w *WorkingCopy) Status(ctx context.Context) (workingcopy.Status, error) {
	var res workingcopy.Status
	err := w.Session(ctx, func(_ *sqlx.Tx) error {
		created, err := w.IsCreated(ctx)
		if err != nil || !created {
			return err
		}
		initialised, err := w.IsInitialised(ctx)
		if err != nil {
			return err
		}
		res = workingcopy.PartiallyCreated
		if initialised {
			res = workingcopy.Created
		}
		return nil
	})
	return res, err
}

// CheckValidState fails when the schema exists without being initialised
func (w *WorkingCopy) CheckValidState(ctx context.Context) error {
	st, err := w.Status(ctx)
	if err != nil {
		return err
	}
	if st == workingcopy.PartiallyCreated {
		return errors.New(fmt.Sprintf("%s working copy is corrupt - schema '%s' is missing %s or %s",
			w.dialect.TypeName, w.schema, StateTable, TrackTable)).Wrap(status.ErrCorrupt)
	}
	return nil
}

// CheckValidCreationPath fails when the schema already holds some data
func (w *WorkingCopy) CheckValidCreationPath(ctx context.Context) error {
	hasData, err := w.HasData(ctx)
	if err != nil {
		return err
	}
	if hasData {
		return errors.New(fmt.Sprintf("Error creating %s working copy at %s - non-empty schema '%s' already exists",
			w.dialect.TypeName, w, w.schema)).Wrap(status.ErrAlreadyExists)
	}
	return nil
}

// Create the schema and its bookkeeping tables
func (w *WorkingCopy) Create(ctx context.Context) error {
	if err := w.CheckValidCreationPath(ctx); err != nil {
		return err
	}
	w.l.Info("creating working copy", zap.String("type", w.dialect.TypeName), zap.String("schema", w.schema))
	key := w.dialect.Quote("key")
	return w.Session(ctx, func(tx *sqlx.Tx) error {
		stmts := []string{
			"CREATE SCHEMA IF NOT EXISTS " + w.dialect.Quote(w.schema),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	table_name %s NOT NULL,
	%s %s NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (table_name, %s)
)`, w.table(StateTable), w.dialect.keyType, key, w.dialect.keyType, key),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	table_name %s NOT NULL,
	pk %s NOT NULL,
	PRIMARY KEY (table_name, pk)
)`, w.table(TrackTable), w.dialect.keyType, w.dialect.keyType),
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete all tables and functions of the schema, and the schema itself
func (w *WorkingCopy) Delete(ctx context.Context) error {
	return w.Drop(ctx, false)
}

// Drop all tables and functions of the schema, and the schema itself unless asked to keep it.
//
// Objects are dropped one by one rather than with CASCADE, which could reach objects outside
// of the schema through foreign keys.
func (w *WorkingCopy) Drop(ctx context.Context, keepSchemaIfPossible bool) error {
	w.l.Info("deleting working copy", zap.String("type", w.dialect.TypeName), zap.String("schema", w.schema))
	return w.Session(ctx, func(tx *sqlx.Tx) error {
		var tables []string
		err := tx.SelectContext(ctx, &tables,
			tx.Rebind("SELECT table_name FROM information_schema.tables WHERE table_schema = ?"), w.schema)
		if err != nil {
			return err
		}
		if len(tables) > 0 {
			quoted := make([]string, 0, len(tables))
			for _, t := range tables {
				quoted = append(quoted, w.table(t))
			}
			if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+strings.Join(quoted, ", ")); err != nil {
				return err
			}
		}

		var functions []string
		err = tx.SelectContext(ctx, &functions,
			tx.Rebind("SELECT routine_name FROM information_schema.routines WHERE routine_schema = ? AND routine_type = 'FUNCTION'"), w.schema)
		if err != nil {
			return err
		}
		for _, f := range functions {
			if _, err = tx.ExecContext(ctx, "DROP FUNCTION IF EXISTS "+w.table(f)); err != nil {
				return err
			}
		}

		if keepSchemaIfPossible {
			return nil
		}
		_, err = tx.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+w.dialect.Quote(w.schema))
		return err
	})
}

func (w *WorkingCopy) assertCreated(ctx context.Context) error {
	st, err := w.Status(ctx)
	if err != nil {
		return err
	}
	switch st {
	case workingcopy.Created:
		return nil
	case workingcopy.PartiallyCreated:
		return w.CheckValidState(ctx)
	default:
		return errors.New(fmt.Sprintf("no %s working copy at %s", w.dialect.TypeName, w)).Wrap(status.ErrNotCreated)
	}
}

// StateValue reads a value from the state table
func (w *WorkingCopy) StateValue(ctx context.Context, table, key string) (string, bool, error) {
	var values []string
	err := w.Session(ctx, func(tx *sqlx.Tx) error {
		if err := w.assertCreated(ctx); err != nil {
			return err
		}
		q := tx.Rebind(fmt.Sprintf("SELECT value FROM %s WHERE table_name = ? AND %s = ?",
			w.table(StateTable), w.dialect.Quote("key")))
		return tx.SelectContext(ctx, &values, q, table, key)
	})
	if err != nil || len(values) == 0 {
		return "", false, err
	}
	return values[0], true, nil
}

// Tree checked out in this working copy
func (w *WorkingCopy) Tree(ctx context.Context) (model.TreeID, error) {
	value, _, err := w.StateValue(ctx, state.AnyTable, state.TreeKey)
	return model.TreeID(value), err
}

// UpdateStateTree records the tree checked out in this working copy
func (w *WorkingCopy) UpdateStateTree(ctx context.Context, tree model.TreeID) error {
	return w.Session(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(fmt.Sprintf("INSERT INTO %s (table_name, %s, value) VALUES (?, ?, ?) %s",
			w.table(StateTable), w.dialect.Quote("key"), w.dialect.upsert))
		_, err := tx.ExecContext(ctx, q, state.AnyTable, state.TreeKey, string(tree))
		return err
	})
}

// Reset the working copy to a tree.
//
// Tile datasets only live in file system working copies: the schema records the tree, and
// tracked changes are discarded unless asked to keep them.
func (w *WorkingCopy) Reset(ctx context.Context, target model.TreeID, opts ...workingcopy.ResetOption) error {
	o := workingcopy.ApplyResetOptions(opts...)
	if o.RewriteFull && (!o.KeyFilter.MatchAll() || o.TrackChangesAsDirty) {
		panic("dbserver: rewrite full needs a match-all filter and does not track changes as dirty")
	}
	if o.TrackChangesAsDirty {
		return w.assertCreated(ctx)
	}
	return w.Session(ctx, func(tx *sqlx.Tx) error {
		if err := w.assertCreated(ctx); err != nil {
			return err
		}
		if o.KeyFilter.MatchAll() {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+w.table(TrackTable)); err != nil {
				return err
			}
		}
		return w.UpdateStateTree(ctx, target)
	})
}

// IsDirty is true when some changes are tracked
func (w *WorkingCopy) IsDirty(ctx context.Context) (bool, error) {
	var count int
	err := w.Session(ctx, func(tx *sqlx.Tx) error {
		if err := w.assertCreated(ctx); err != nil {
			return err
		}
		return tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+w.table(TrackTable))
	})
	return count > 0, err
}

// Close the connection to the database
func (w *WorkingCopy) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	w.sessions = nil
	return err
}
