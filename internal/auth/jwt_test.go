package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestTokenService creates a TokenService with a fixed, known secret so
// tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, "", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short", "", time.Hour); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_NonPositiveTTL(t *testing.T) {
	if _, err := NewTokenService(testSecret, "", 0); err == nil {
		t.Fatal("NewTokenService() should reject a zero lifetime")
	}
}

func TestNewTokenService_DefaultIssuer(t *testing.T) {
	ts := newTestTokenService(t)
	if ts.issuer != DefaultIssuer {
		t.Errorf("issuer = %q, want %q", ts.issuer, DefaultIssuer)
	}
}

// =========================================================================
// ISSUE
// =========================================================================

func TestIssue_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("Issue() token doesn't look like a JWT (expected 2 dots, got %d)", n)
	}
}

func TestIssue_EmptyUsername(t *testing.T) {
	ts := newTestTokenService(t)
	if _, err := ts.Issue(""); err == nil {
		t.Fatal("Issue() should refuse an empty username")
	}
}

func TestIssue_TokensAreUnique(t *testing.T) {
	ts := newTestTokenService(t)

	// Same user, same second: the jti still differs.
	t1, _ := ts.Issue("alice")
	t2, _ := ts.Issue("alice")
	if t1 == t2 {
		t.Error("Issue() returned identical tokens for two calls")
	}
}

// =========================================================================
// VERIFY
// =========================================================================

func TestVerify_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "alice" {
		t.Errorf("Verify() username = %q, want %q", got, "alice")
	}
}

func TestVerify_Failures(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", "", time.Hour)
	foreignIssuer, _ := NewTokenService(testSecret, "someone-else", time.Hour)

	good, _ := ts.Issue("alice")
	expired, _ := ts.IssueWithDuration("alice", -time.Second)
	wrongSecret, _ := other.Issue("alice")
	wrongIssuer, _ := foreignIssuer.Issue("alice")

	// A token signed with the right key but no exp claim at all.
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
		Issuer:  DefaultIssuer,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing no-exp token: %v", err)
	}

	// Unsigned token ("alg": "none").
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIssuer},
		{"missing exp", noExp},
		{"alg none", none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerify_UsesInjectedClock(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Issue("alice")

	// Two hours later the one-hour token must be rejected.
	ts.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := ts.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken after expiry", err)
	}
}
