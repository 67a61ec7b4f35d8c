package dbserver

import (
	"database/sql/driver"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	// registers the "pgx" driver
	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/oneconcern/tilekeeper/pkg/errors"
)

// Dialect captures what differs between the database servers a working copy may live in
type Dialect struct {
	// Scheme of working copy URIs, e.g. "postgresql"
	Scheme string
	// TypeName is the display name of this kind of working copy
	TypeName string

	driver  string
	keyType string
	quote   func(string) string
	dsn     func(u *url.URL, database string) string
	upsert  string
	connErr func(error) bool
}

var (
	// PostgreSQL working copies
	PostgreSQL = &Dialect{
		Scheme:   "postgresql",
		TypeName: "PostgreSQL",
		driver:   "pgx",
		keyType:  "TEXT",
		quote:    quoteWith(`"`),
		dsn:      postgresDSN,
		upsert:   `ON CONFLICT (table_name, "key") DO UPDATE SET value = EXCLUDED.value`,
		connErr:  isPostgresConnectionError,
	}

	// MySQL working copies. In MySQL, a schema is a database.
	MySQL = &Dialect{
		Scheme:   "mysql",
		TypeName: "MySQL",
		driver:   "mysql",
		keyType:  "VARCHAR(255)",
		quote:    quoteWith("`"),
		dsn:      mySQLDSN,
		upsert:   "ON DUPLICATE KEY UPDATE value = VALUES(value)",
		connErr:  isMySQLConnectionError,
	}

	dialects = []*Dialect{PostgreSQL, MySQL}
)

// DialectFor returns the dialect for a URI scheme
func DialectFor(scheme string) (*Dialect, bool) {
	for _, d := range dialects {
		if d.Scheme == scheme {
			return d, true
		}
	}
	return nil, false
}

// IsDatabaseURI tells if some working copy location designates a database server
func IsDatabaseURI(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	_, ok := DialectFor(u.Scheme)
	return ok
}

func (d *Dialect) String() string {
	return d.TypeName
}

// Quote an identifier
func (d *Dialect) Quote(ident string) string {
	return d.quote(ident)
}

// QualifiedName of a table of some schema
func (d *Dialect) QualifiedName(schema, table string) string {
	return d.quote(schema) + "." + d.quote(table)
}

func quoteWith(q string) func(string) string {
	return func(ident string) string {
		return q + strings.ReplaceAll(ident, q, q+q) + q
	}
}

func postgresDSN(u *url.URL, database string) string {
	c := *u
	c.Path = "/" + database
	c.RawPath = ""
	c.Fragment = ""
	return c.String()
}

func mySQLDSN(u *url.URL, database string) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" && u.Hostname() != "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = database
	cfg.AllowNativePasswords = true
	if q := u.Query(); len(q) > 0 {
		cfg.Params = make(map[string]string, len(q))
		for k := range q {
			cfg.Params[k] = q.Get(k)
		}
	}
	return cfg.FormatDSN()
}

// isPostgresConnectionError tells apart failures to reach or log into the server.
// Dial failures surface as a net.Error wrapped by pgconn.
func isPostgresConnectionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsInvalidAuthorizationSpecification(pgErr.Code) ||
			pgErr.Code == pgerrcode.InvalidCatalogName
	}
	return isNetworkError(err)
}

func isMySQLConnectionError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1049: // access denied to database, access denied for user, unknown database
			return true
		}
		return false
	}
	return errors.Is(err, mysql.ErrInvalidConn) || isNetworkError(err)
}

func isNetworkError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
