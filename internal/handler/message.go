package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/messagely/internal/auth"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/service"
)

// MessageHandler serves /messages. All routes require a logged-in caller;
// the per-message ownership checks happen in the service's authorized
// accessors because they need the message itself.
type MessageHandler struct {
	messages *service.MessageService
	logger   *slog.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(messages *service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type createMessageRequest struct {
	ToUsername string `json:"to_username"`
	Body       string `json:"body"`
}

// sentMessage is the creation response: the stored row minus read_at,
// which is always null for a message that was just sent.
type sentMessage struct {
	ID           int64     `json:"id"`
	FromUsername string    `json:"from_username"`
	ToUsername   string    `json:"to_username"`
	Body         string    `json:"body"`
	SentAt       time.Time `json:"sent_at"`
}

// HandleGet handles GET /messages/{id}.
//
//	unknown id → 404; caller is not a party → 401
func (h *MessageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseMessageID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	msg, err := h.messages.GetAs(r.Context(), auth.IdentityFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Message *model.MessageDetail `json:"message"`
	}{msg})
}

// HandleCreate handles POST /messages {to_username, body} → 201.
// The sender is always the caller; a from_username in the body is ignored.
func (h *MessageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	caller := auth.IdentityFromContext(r.Context())
	msg, err := h.messages.Create(r.Context(), caller.Username, req.ToUsername, req.Body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Message sentMessage `json:"message"`
	}{sentMessage{
		ID:           msg.ID,
		FromUsername: msg.FromUsername,
		ToUsername:   msg.ToUsername,
		Body:         msg.Body,
		SentAt:       msg.SentAt,
	}})
}

// HandleMarkRead handles POST /messages/{id}/read → 200 {message: {id, read_at}}.
//
//	unknown id → 404; caller is not the recipient → 401
func (h *MessageHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseMessageID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	receipt, err := h.messages.MarkReadAs(r.Context(), auth.IdentityFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Message *model.ReadReceipt `json:"message"`
	}{receipt})
}
