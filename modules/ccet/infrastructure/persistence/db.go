// Package persistence stores CCET entities and investment facts in a SQL
// database.
package persistence

import (
	"context"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect names a supported database flavour.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	ErrUnknownDialect = errors.New("unknown database dialect")
	// ErrUnreachable marks a database that could not be opened or pinged.
	ErrUnreachable = errors.New("database unreachable")
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func ParseDialect(v string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "mysql":
		return DialectMySQL, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", errors.Wrapf(ErrUnknownDialect, "%q (expected mysql|postgres|sqlite)", v)
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectSQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

func (d Dialect) gooseDialect() goose.Dialect {
	switch d {
	case DialectPostgres:
		return goose.DialectPostgres
	case DialectSQLite:
		return goose.DialectSQLite3
	default:
		return goose.DialectMySQL
	}
}

// returningID reports whether inserts read the new id through RETURNING
// rather than LastInsertId.
func (d Dialect) returningID() bool {
	return d == DialectPostgres
}

// Open connects and pings within timeout. The pipeline is sequential, so the
// pool is held to a single connection.
func Open(ctx context.Context, dialect Dialect, dsn string, timeout time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreachable, "open %s: %v", dialect, err)
	}
	db.SetMaxOpenConns(1)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(ErrUnreachable, "ping %s: %v", dialect, err)
	}
	return db, nil
}
