package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/service"
)

// UserHandler serves /users. Every route except the listing is mounted
// behind auth.RequireSameUser("username"), so by the time these methods
// run the path username is the caller's own.
type UserHandler struct {
	users    *service.AuthService
	messages *service.MessageService
	logger   *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.AuthService, messages *service.MessageService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, messages: messages, logger: logger}
}

// HandleList handles GET /users → 200 [ {username, first_name, last_name, phone} ].
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet handles GET /users/{username} → 200 {user: {...}}.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User *model.UserDetail `json:"user"`
	}{user})
}

// HandleMessagesTo handles GET /users/{username}/to → 200 {messages: [...]}.
func (h *UserHandler) HandleMessagesTo(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.ListTo(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Messages []model.MessageTo `json:"messages"`
	}{msgs})
}

// HandleMessagesFrom handles GET /users/{username}/from → 200 {messages: [...]}.
func (h *UserHandler) HandleMessagesFrom(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.ListFrom(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Messages []model.MessageFrom `json:"messages"`
	}{msgs})
}
