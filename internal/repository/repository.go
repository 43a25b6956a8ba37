// Package repository declares the storage contracts the services depend on.
//
// Implementations translate their driver's failures into the application's
// error kinds:
//   - duplicate username          → apperror.ErrConflict
//   - message to unknown username → apperror.ErrRecipientNotFound
//   - no such row                 → apperror.ErrNotFound
package repository

import (
	"context"
	"time"

	"github.com/sakif/messagely/internal/model"
)

type UserRepository interface {
	InsertUser(ctx context.Context, user *model.User) error
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *model.Message) error
	FindMessageByID(ctx context.Context, id int64) (*model.Message, error)
	// UpdateMessageReadAt sets read_at only if it is still NULL. It returns
	// the row as it is after the call, so a second call sees the first
	// timestamp unchanged.
	UpdateMessageReadAt(ctx context.Context, id int64, at time.Time) (*model.Message, error)
	ListMessagesTo(ctx context.Context, username string) ([]model.Message, error)
	ListMessagesFrom(ctx context.Context, username string) ([]model.Message, error)
}
