package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxTokenBodyBytes caps how much of a request body the gate will buffer
// while looking for a "_token" field.
const maxTokenBodyBytes = 1 << 20

// TokenField is the JSON body field / query parameter that may carry a token.
const TokenField = "_token"

// contextKey is an unexported type used for context keys in this package, so
// no other package can read or shadow the identity value.
type contextKey string

const identityKey contextKey = "identity"

// Identity is who the caller proved to be. The zero value is "anonymous".
type Identity struct {
	Username string
}

// Authenticated reports whether the identity names a user.
func (i Identity) Authenticated() bool {
	return i.Username != ""
}

// TokenVerifier is the part of TokenService the gate needs.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity attached by Authenticate.
// Anonymous requests get the zero Identity.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// Authenticate is the authentication gate. It looks for a token, verifies
// it, and on success attaches the asserted username to the request context.
//
// It NEVER rejects a request: a missing, malformed, expired or forged token
// just leaves the request anonymous. Whether anonymous is acceptable is the
// policy's decision (RequireLoggedIn, RequireSameUser, ...), not the gate's.
//
// Where the token may come from, in order:
//  1. Authorization: Bearer <token>
//  2. ?_token=<token>
//  3. {"_token": "<token>", ...} in a JSON request body
func Authenticate(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := extractToken(r); raw != "" {
				if username, err := tokens.Verify(raw); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), Identity{Username: username}))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken finds the raw token string, or "" if there is none.
// If it has to read the body, the body is restored so handlers can decode it.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	if t := r.URL.Query().Get(TokenField); t != "" {
		return t
	}

	return tokenFromBody(r)
}

func tokenFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") {
		return ""
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBodyBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(buf))
	if err != nil || len(buf) == 0 {
		return ""
	}

	var envelope struct {
		Token string `json:"_token"`
	}
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return ""
	}
	return envelope.Token
}
