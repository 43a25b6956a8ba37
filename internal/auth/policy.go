package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
)

// AUTHORIZATION POLICY:
// Each rule below is a pure function of (identity, target). They are
// composed per route rather than layered: listing users needs only
// LoggedIn, reading a message needs LoggedIn + MessageParty, marking it
// read needs LoggedIn + Recipient.
//
// Every denial is the same apperror.Unauthorized(), whatever the reason,
// so a caller can't tell "no token" from "not yours" from "no such user".

// LoggedIn requires a non-empty identity.
func LoggedIn(id Identity) error {
	if !id.Authenticated() {
		return apperror.Unauthorized()
	}
	return nil
}

// SameUser requires the identity to be exactly target. It must run BEFORE
// target is looked up anywhere, so that a nonexistent target and someone
// else's target are indistinguishable.
func SameUser(id Identity, target string) error {
	if !id.Authenticated() || id.Username != target {
		return apperror.Unauthorized()
	}
	return nil
}

// MessageParty requires the identity to be the sender or the recipient of m.
func MessageParty(id Identity, m *model.Message) error {
	if m == nil || !m.IsParty(id.Username) {
		return apperror.Unauthorized()
	}
	return nil
}

// Recipient requires the identity to be the recipient of m. It is the
// one-sided variant of MessageParty used for marking a message read.
func Recipient(id Identity, m *model.Message) error {
	if m == nil || !m.IsRecipient(id.Username) {
		return apperror.Unauthorized()
	}
	return nil
}

// unauthorizedBody matches the handler package's ErrorResponse shape.
const unauthorizedBody = `{"error":"unauthorized","message":"Unauthorized"}` + "\n"

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

// RequireLoggedIn rejects anonymous requests with 401.
// Must be mounted after Authenticate.
func RequireLoggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := LoggedIn(IdentityFromContext(r.Context())); err != nil {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSameUser rejects the request with 401 unless the caller's identity
// equals the chi URL parameter named param. Nothing downstream runs on a
// mismatch, so no lookup of the path username ever happens for strangers.
func RequireSameUser(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target := chi.URLParam(r, param)
			if err := SameUser(IdentityFromContext(r.Context()), target); err != nil {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
