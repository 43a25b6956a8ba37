package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

var _ repository.MessageRepository = (*DB)(nil)

var messageColumns = []string{
	"id", "from_username", "to_username", "body", "sent_at", "read_at",
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var (
		m      model.Message
		readAt sql.NullTime
	)
	if err := row.Scan(
		&m.ID,
		&m.FromUsername,
		&m.ToUsername,
		&m.Body,
		&m.SentAt,
		&readAt,
	); err != nil {
		return nil, err
	}
	m.SentAt = m.SentAt.UTC()
	m.ReadAt = nullTime(readAt)
	return &m, nil
}

// InsertMessage stores msg, filling in its ID and SentAt. A to_username
// (or from_username) with no matching user yields
// apperror.ErrRecipientNotFound and no row is written.
func (db *DB) InsertMessage(ctx context.Context, msg *model.Message) error {
	sentAt := db.now()

	query, args, err := db.sb.
		Insert("messages").
		Columns("from_username", "to_username", "body", "sent_at").
		Values(msg.FromUsername, msg.ToUsername, msg.Body, sentAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building message insert: %w", err)
	}

	var id int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if classify(err) == constraintForeignKey {
			return apperror.RecipientNotFound(msg.ToUsername)
		}
		return fmt.Errorf("sqlstore: inserting message: %w", err)
	}

	msg.ID = id
	msg.SentAt = sentAt
	msg.ReadAt = nil
	return nil
}

// FindMessageByID returns apperror.ErrNotFound if there is no such message.
func (db *DB) FindMessageByID(ctx context.Context, id int64) (*model.Message, error) {
	query, args, err := db.sb.
		Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building message select: %w", err)
	}

	m, err := scanMessage(db.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlstore: getting message %d: %w", id, err)
	}

	return m, nil
}

// UpdateMessageReadAt sets read_at to at unless it is already set. The
// conditional WHERE makes the first timestamp win even when two requests
// race; the message is then re-read so the caller sees the stored value.
func (db *DB) UpdateMessageReadAt(ctx context.Context, id int64, at time.Time) (*model.Message, error) {
	query, args, err := db.sb.
		Update("messages").
		Set("read_at", at.UTC()).
		Where(sq.Eq{"id": id, "read_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building read-at update: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: marking message %d read: %w", id, err)
	}

	return db.FindMessageByID(ctx, id)
}

// ListMessagesTo returns messages received by username, oldest first.
func (db *DB) ListMessagesTo(ctx context.Context, username string) ([]model.Message, error) {
	return db.listMessages(ctx, sq.Eq{"to_username": username})
}

// ListMessagesFrom returns messages sent by username, oldest first.
func (db *DB) ListMessagesFrom(ctx context.Context, username string) ([]model.Message, error) {
	return db.listMessages(ctx, sq.Eq{"from_username": username})
}

func (db *DB) listMessages(ctx context.Context, where sq.Eq) ([]model.Message, error) {
	query, args, err := db.sb.
		Select(messageColumns...).
		From("messages").
		Where(where).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building message list: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning message row: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating messages: %w", err)
	}

	return messages, nil
}
