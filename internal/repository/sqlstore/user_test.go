package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
)

// =========================================================================
// INSERT TESTS
// =========================================================================

func TestInsertUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Username:     "alice",
		PasswordHash: "hash",
		FirstName:    "Alice",
		LastName:     "Liddell",
		Phone:        "+15551112222",
	}
	if err := db.InsertUser(context.Background(), user); err != nil {
		t.Fatalf("InsertUser() error = %v", err)
	}

	if user.JoinAt.IsZero() {
		t.Error("InsertUser() did not set JoinAt")
	}
	if user.LastLoginAt != nil {
		t.Errorf("LastLoginAt = %v, want nil", user.LastLoginAt)
	}
}

func TestInsertUser_KeepsJoinAt(t *testing.T) {
	db := newTestDB(t)

	joined := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	user := &model.User{Username: "alice", PasswordHash: "hash", JoinAt: joined}
	if err := db.InsertUser(context.Background(), user); err != nil {
		t.Fatalf("InsertUser() error = %v", err)
	}

	got, err := db.FindUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindUserByUsername() error = %v", err)
	}
	if !got.JoinAt.Equal(joined) {
		t.Errorf("JoinAt = %v, want %v", got.JoinAt, joined)
	}
}

func TestInsertUser_Duplicate(t *testing.T) {
	db := newTestDB(t)
	original := createTestUser(t, db, "alice")

	dup := &model.User{
		Username:     "alice",
		PasswordHash: "other",
		FirstName:    "Impostor",
	}
	err := db.InsertUser(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("InsertUser() error = %v, want ErrConflict", err)
	}

	// The first registration is untouched.
	got, err := db.FindUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindUserByUsername() error = %v", err)
	}
	if got.FirstName != original.FirstName || got.PasswordHash != original.PasswordHash {
		t.Errorf("existing user was modified: %+v", got)
	}
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestFindUserByUsername(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	got, err := db.FindUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindUserByUsername() error = %v", err)
	}

	if got.Username != created.Username {
		t.Errorf("Username = %q, want %q", got.Username, created.Username)
	}
	if got.PasswordHash != created.PasswordHash {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, created.PasswordHash)
	}
	if got.FirstName != created.FirstName || got.LastName != created.LastName || got.Phone != created.Phone {
		t.Errorf("profile mismatch: got %+v, want %+v", got, created)
	}
	if !got.JoinAt.Equal(created.JoinAt) {
		t.Errorf("JoinAt = %v, want %v", got.JoinAt, created.JoinAt)
	}
}

func TestFindUserByUsername_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.FindUserByUsername(context.Background(), "doesNotExist")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindUserByUsername() error = %v, want ErrNotFound", err)
	}
}

func TestListUsers(t *testing.T) {
	db := newTestDB(t)

	got, err := db.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() on empty db error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListUsers() on empty db = %v, want empty non-nil slice", got)
	}

	createTestUser(t, db, "carol")
	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	got, err = db.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}

	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("ListUsers() returned %d users, want %d", len(got), len(want))
	}
	for i, u := range got {
		if u.Username != want[i] {
			t.Errorf("ListUsers()[%d] = %q, want %q", i, u.Username, want[i])
		}
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdateLastLogin(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := db.UpdateLastLogin(context.Background(), "alice", at); err != nil {
		t.Fatalf("UpdateLastLogin() error = %v", err)
	}

	got, err := db.FindUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindUserByUsername() error = %v", err)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(at) {
		t.Errorf("LastLoginAt = %v, want %v", got.LastLoginAt, at)
	}
}

func TestUpdateLastLogin_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateLastLogin(context.Background(), "ghost", time.Now())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateLastLogin() error = %v, want ErrNotFound", err)
	}
}
