package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/auth"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/notify"
	"github.com/sakif/messagely/internal/repository"
)

// MaxBodyLength bounds a message body.
const MaxBodyLength = 10000

// MessageService owns the message ownership model: who a message belongs
// to, how its parties are expanded and the one-way null→timestamp read_at
// transition.
//
// The plain operations (Create, Get, MarkRead, ListTo, ListFrom) trust the
// caller to have authorized the request. GetAs and MarkReadAs are the
// authorized accessors the HTTP layer uses: they resolve the message first
// (so an unknown id is 404) and then apply the ownership rule (so someone
// else's message is 401).
type MessageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	notifier notify.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewMessageService creates a MessageService. A nil notifier disables
// new-message notifications.
func NewMessageService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	notifier notify.Publisher,
	logger *slog.Logger,
) *MessageService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &MessageService{
		messages: messages,
		users:    users,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a message from one user to another. The recipient's
// existence is enforced by storage; an unknown recipient is
// apperror.ErrRecipientNotFound and nothing is written.
func (s *MessageService) Create(ctx context.Context, from, to, body string) (*model.Message, error) {
	to = strings.TrimSpace(to)

	if from == "" {
		return nil, apperror.Unauthorized()
	}
	if to == "" {
		return nil, apperror.ValidationFailed("to_username", "to_username is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperror.ValidationFailed("body", "body is required")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, apperror.ValidationFailed("body",
			fmt.Sprintf("body must be at most %d characters", MaxBodyLength))
	}

	msg := &model.Message{
		FromUsername: from,
		ToUsername:   to,
		Body:         body,
	}
	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		if errors.Is(err, apperror.ErrRecipientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/message: creating message: %w", err)
	}

	s.logger.Info("message created",
		slog.Int64("id", msg.ID),
		slog.String("from", msg.FromUsername),
		slog.String("to", msg.ToUsername),
	)

	// The message is already stored, so a broker outage only costs the
	// real-time notification.
	if err := s.notifier.MessageSent(ctx, *msg); err != nil {
		s.logger.Warn("message notification failed",
			slog.Int64("id", msg.ID),
			slog.String("error", err.Error()),
		)
	}

	return msg, nil
}

// Get returns the message with both parties expanded.
func (s *MessageService) Get(ctx context.Context, id int64) (*model.MessageDetail, error) {
	msg, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, msg)
}

// GetAs is Get for a specific caller: an unknown id is apperror.ErrNotFound,
// and a message the caller is not a party to is apperror.ErrUnauthorized.
func (s *MessageService) GetAs(ctx context.Context, id auth.Identity, messageID int64) (*model.MessageDetail, error) {
	if err := auth.LoggedIn(id); err != nil {
		return nil, err
	}

	msg, err := s.find(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if err := auth.MessageParty(id, msg); err != nil {
		s.logger.Debug("message read denied",
			slog.Int64("id", messageID),
			slog.String("username", id.Username),
		)
		return nil, err
	}

	return s.expand(ctx, msg)
}

// MarkRead sets read_at if it is not already set and returns the stored
// value. Repeated calls return the first timestamp.
func (s *MessageService) MarkRead(ctx context.Context, id int64) (*model.ReadReceipt, error) {
	msg, err := s.messages.UpdateMessageReadAt(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/message: marking message %d read: %w", id, err)
	}
	if msg.ReadAt == nil {
		return nil, fmt.Errorf("service/message: message %d has no read_at after update", id)
	}

	s.logger.Info("message marked read", slog.Int64("id", id))

	return &model.ReadReceipt{ID: msg.ID, ReadAt: *msg.ReadAt}, nil
}

// MarkReadAs is MarkRead for a specific caller, who must be the recipient.
func (s *MessageService) MarkReadAs(ctx context.Context, id auth.Identity, messageID int64) (*model.ReadReceipt, error) {
	if err := auth.LoggedIn(id); err != nil {
		return nil, err
	}

	msg, err := s.find(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if err := auth.Recipient(id, msg); err != nil {
		s.logger.Debug("mark read denied",
			slog.Int64("id", messageID),
			slog.String("username", id.Username),
		)
		return nil, err
	}

	return s.MarkRead(ctx, messageID)
}

// ListTo returns username's inbox with each sender expanded.
func (s *MessageService) ListTo(ctx context.Context, username string) ([]model.MessageTo, error) {
	msgs, err := s.messages.ListMessagesTo(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/message: listing messages to %s: %w", username, err)
	}

	users := newUserCache(s.users)
	out := make([]model.MessageTo, 0, len(msgs))
	for _, m := range msgs {
		from, err := users.summary(ctx, m.FromUsername)
		if err != nil {
			return nil, err
		}
		out = append(out, model.MessageTo{
			ID:       m.ID,
			Body:     m.Body,
			SentAt:   m.SentAt,
			ReadAt:   m.ReadAt,
			FromUser: from,
		})
	}
	return out, nil
}

// ListFrom returns username's outbox with each recipient expanded.
func (s *MessageService) ListFrom(ctx context.Context, username string) ([]model.MessageFrom, error) {
	msgs, err := s.messages.ListMessagesFrom(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/message: listing messages from %s: %w", username, err)
	}

	users := newUserCache(s.users)
	out := make([]model.MessageFrom, 0, len(msgs))
	for _, m := range msgs {
		to, err := users.summary(ctx, m.ToUsername)
		if err != nil {
			return nil, err
		}
		out = append(out, model.MessageFrom{
			ID:     m.ID,
			Body:   m.Body,
			SentAt: m.SentAt,
			ReadAt: m.ReadAt,
			ToUser: to,
		})
	}
	return out, nil
}

func (s *MessageService) find(ctx context.Context, id int64) (*model.Message, error) {
	msg, err := s.messages.FindMessageByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/message: fetching message %d: %w", id, err)
	}
	return msg, nil
}

// expand looks up both parties. The lookups are separate reads from the
// message read; the expanded fields never change after registration.
func (s *MessageService) expand(ctx context.Context, msg *model.Message) (*model.MessageDetail, error) {
	users := newUserCache(s.users)

	from, err := users.summary(ctx, msg.FromUsername)
	if err != nil {
		return nil, err
	}
	to, err := users.summary(ctx, msg.ToUsername)
	if err != nil {
		return nil, err
	}

	return &model.MessageDetail{
		ID:       msg.ID,
		Body:     msg.Body,
		SentAt:   msg.SentAt,
		ReadAt:   msg.ReadAt,
		FromUser: from,
		ToUser:   to,
	}, nil
}

// userCache memoizes party lookups within one call, so a list of fifty
// messages from the same sender costs one query.
type userCache struct {
	users repository.UserRepository
	seen  map[string]model.UserSummary
}

func newUserCache(users repository.UserRepository) *userCache {
	return &userCache{users: users, seen: make(map[string]model.UserSummary)}
}

func (c *userCache) summary(ctx context.Context, username string) (model.UserSummary, error) {
	if s, ok := c.seen[username]; ok {
		return s, nil
	}
	u, err := c.users.FindUserByUsername(ctx, username)
	if err != nil {
		return model.UserSummary{}, fmt.Errorf("service/message: expanding user %s: %w", username, err)
	}
	s := u.Summary()
	c.seen[username] = s
	return s, nil
}

// ParseMessageID parses a path id. Anything that is not a positive integer
// can't name a message, so it is reported as not found.
func ParseMessageID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound("message", raw)
	}
	return id, nil
}
