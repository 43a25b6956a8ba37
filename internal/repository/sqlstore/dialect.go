package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver names accepted by New. They are also the database/sql driver names
// registered by the blank imports in sqlstore.go.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// PostgreSQL SQLSTATE codes we care about.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// dialect captures everything that differs between the two backends.
type dialect struct {
	driver       string
	placeholder  sq.PlaceholderFormat
	gooseDialect goose.Dialect
	migrations   string // sub-directory of the embedded migrations FS
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "sqlite3":
		return dialect{
			driver:       DriverSQLite,
			placeholder:  sq.Question,
			gooseDialect: goose.DialectSQLite3,
			migrations:   "migrations/sqlite",
		}, nil
	case DriverPostgres, "postgres", "postgresql":
		return dialect{
			driver:       DriverPostgres,
			placeholder:  sq.Dollar,
			gooseDialect: goose.DialectPostgres,
			migrations:   "migrations/postgres",
		}, nil
	default:
		return dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// sqliteDSN turns a file path (or ":memory:") into a modernc DSN with
// foreign keys enforced on every pooled connection. A PRAGMA executed once
// after Open would only reach one connection of the pool.
func sqliteDSN(path string) string {
	params := []string{"_pragma=foreign_keys(1)"}
	if !isMemory(path) {
		params = append(params, "_pragma=journal_mode(WAL)", "_pragma=busy_timeout(5000)")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// constraintKind classifies a driver error.
type constraintKind int

const (
	constraintNone constraintKind = iota
	constraintUnique
	constraintForeignKey
)

// classify inspects err for a unique or foreign-key violation from either
// driver. Anything else is constraintNone.
func classify(err error) constraintKind {
	if err == nil {
		return constraintNone
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return constraintUnique
		case pgForeignKeyViolation:
			return constraintForeignKey
		}
		return constraintNone
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return constraintUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return constraintForeignKey
		case sqlite3.SQLITE_CONSTRAINT:
			// Extended codes disabled: fall back to the message text.
			msg := liteErr.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return constraintUnique
			case strings.Contains(msg, "FOREIGN KEY"):
				return constraintForeignKey
			}
		}
	}

	return constraintNone
}
