package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/auth"
	"github.com/sakif/messagely/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// fakeStore is an in-memory implementation of both repository interfaces.
// It enforces the same rules the SQL store does: unique usernames, message
// parties must exist, read_at is only ever set once.

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]model.User
	messages []model.Message
	nextID   int64

	// set to a non-nil error to simulate a database failure
	findUserErr error
	findCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]model.User)}
}

func (f *fakeStore) InsertUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Username]; ok {
		return apperror.Conflict("user", user.Username)
	}
	if user.JoinAt.IsZero() {
		user.JoinAt = time.Now().UTC()
	}
	f.users[user.Username] = *user
	return nil
}

func (f *fakeStore) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findUserErr != nil {
		return nil, f.findUserErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	return &u, nil
}

func (f *fakeStore) ListUsers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return apperror.NotFound("user", username)
	}
	u.LastLoginAt = &at
	f.users[username] = u
	return nil
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[msg.FromUsername]; !ok {
		return apperror.RecipientNotFound(msg.ToUsername)
	}
	if _, ok := f.users[msg.ToUsername]; !ok {
		return apperror.RecipientNotFound(msg.ToUsername)
	}
	f.nextID++
	msg.ID = f.nextID
	msg.SentAt = time.Now().UTC()
	msg.ReadAt = nil
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeStore) FindMessageByID(_ context.Context, id int64) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, apperror.NotFound("message", strconv.FormatInt(id, 10))
}

func (f *fakeStore) UpdateMessageReadAt(_ context.Context, id int64, at time.Time) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == id {
			if f.messages[i].ReadAt == nil {
				t := at
				f.messages[i].ReadAt = &t
			}
			m := f.messages[i]
			return &m, nil
		}
	}
	return nil, apperror.NotFound("message", strconv.FormatInt(id, 10))
}

func (f *fakeStore) ListMessagesTo(_ context.Context, username string) ([]model.Message, error) {
	return f.filter(func(m model.Message) bool { return m.ToUsername == username }), nil
}

func (f *fakeStore) ListMessagesFrom(_ context.Context, username string) ([]model.Message, error) {
	return f.filter(func(m model.Message) bool { return m.FromUsername == username }), nil
}

func (f *fakeStore) filter(keep func(model.Message) bool) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, 0)
	for _, m := range f.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// fakePublisher records notifications, optionally failing them.
type fakePublisher struct {
	sent []model.Message
	err  error
}

func (p *fakePublisher) MessageSent(_ context.Context, msg model.Message) error {
	p.sent = append(p.sent, msg)
	return p.err
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuthService returns an AuthService over store. bcrypt cost 4 keeps
// the tests fast.
func newTestAuthService(t *testing.T, store *fakeStore) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars", "", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return NewAuthService(store, tokens, auth.NewPasswordService(4), discardLogger())
}

func newTestMessageService(t *testing.T, store *fakeStore, pub *fakePublisher) *MessageService {
	t.Helper()
	if pub == nil {
		return NewMessageService(store, store, nil, discardLogger())
	}
	return NewMessageService(store, store, pub, discardLogger())
}

// registerUser registers username with password "password" and fails the
// test on error.
func registerUser(t *testing.T, svc *AuthService, username string) *AuthResult {
	t.Helper()
	res, err := svc.Register(context.Background(), RegisterInput{
		Username:  username,
		Password:  "password",
		FirstName: "First-" + username,
		LastName:  "Last-" + username,
		Phone:     "555-" + username,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return res
}
