package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

var userColumns = []string{
	"username", "password", "first_name", "last_name", "phone", "join_at", "last_login_at",
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&u.Username,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.JoinAt,
		&lastLogin,
	); err != nil {
		return nil, err
	}
	u.JoinAt = u.JoinAt.UTC()
	u.LastLoginAt = nullTime(lastLogin)
	return &u, nil
}

// InsertUser stores a new user. JoinAt is set here if the caller left it
// zero. A username that already exists yields apperror.ErrConflict and
// leaves the existing row untouched.
func (db *DB) InsertUser(ctx context.Context, user *model.User) error {
	if user.JoinAt.IsZero() {
		user.JoinAt = db.now()
	}

	query, args, err := db.sb.
		Insert("users").
		Columns(userColumns...).
		Values(
			user.Username,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.Phone,
			user.JoinAt,
			user.LastLoginAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building user insert: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		if classify(err) == constraintUnique {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlstore: inserting user %s: %w", user.Username, err)
	}

	return nil
}

// FindUserByUsername returns apperror.ErrNotFound if there is no such user.
func (db *DB) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query, args, err := db.sb.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building user select: %w", err)
	}

	u, err := scanUser(db.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", username, err)
	}

	return u, nil
}

// ListUsers returns every user ordered by username.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	query, args, err := db.sb.
		Select(userColumns...).
		From("users").
		OrderBy("username").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building user list: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating users: %w", err)
	}

	return users, nil
}

// UpdateLastLogin records a successful authentication.
func (db *DB) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	query, args, err := db.sb.
		Update("users").
		Set("last_login_at", at.UTC()).
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building last-login update: %w", err)
	}

	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: updating last login for %s: %w", username, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", username)
	}

	return nil
}
