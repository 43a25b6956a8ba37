package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/messagely/internal/auth"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		identity  string
		wantLevel string
		wantUser  bool
	}{
		{"anonymous ok", http.StatusOK, "", "level=INFO", false},
		{"authenticated", http.StatusCreated, "alice", "level=INFO", true},
		{"server error", http.StatusInternalServerError, "", "level=ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			})

			var h http.Handler = Logger(logger)(inner)
			h = chimiddleware.RequestID(h)

			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tt.identity != "" {
				req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{Username: tt.identity}))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			out := buf.String()
			assert.Contains(t, out, `msg="request completed"`)
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "path=/users")
			assert.Contains(t, out, "bytes=5")
			assert.Contains(t, out, "request_id=")
			if tt.wantUser {
				assert.Contains(t, out, "username="+tt.identity)
			} else {
				assert.NotContains(t, out, "username=")
			}
		})
	}
}

func TestResponseWriter_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "status=200")
}
