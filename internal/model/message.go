package model

import "time"

// Message is a stored message row. ID is assigned by storage and increases
// monotonically. Everything except ReadAt is immutable once written, and
// ReadAt only ever moves from nil to a timestamp.
type Message struct {
	ID           int64      `json:"id"`
	FromUsername string     `json:"from_username"`
	ToUsername   string     `json:"to_username"`
	Body         string     `json:"body"`
	SentAt       time.Time  `json:"sent_at"`
	ReadAt       *time.Time `json:"read_at"`
}

// IsParty reports whether username is the sender or the recipient.
func (m *Message) IsParty(username string) bool {
	return username != "" && (m.FromUsername == username || m.ToUsername == username)
}

// IsRecipient reports whether username is the recipient.
func (m *Message) IsRecipient(username string) bool {
	return username != "" && m.ToUsername == username
}

// MessageDetail is a message with both parties expanded.
type MessageDetail struct {
	ID       int64       `json:"id"`
	Body     string      `json:"body"`
	SentAt   time.Time   `json:"sent_at"`
	ReadAt   *time.Time  `json:"read_at"`
	FromUser UserSummary `json:"from_user"`
	ToUser   UserSummary `json:"to_user"`
}

// MessageTo is an entry of a user's inbox: only the sender is expanded.
type MessageTo struct {
	ID       int64       `json:"id"`
	Body     string      `json:"body"`
	SentAt   time.Time   `json:"sent_at"`
	ReadAt   *time.Time  `json:"read_at"`
	FromUser UserSummary `json:"from_user"`
}

// MessageFrom is an entry of a user's outbox: only the recipient is expanded.
type MessageFrom struct {
	ID     int64       `json:"id"`
	Body   string      `json:"body"`
	SentAt time.Time   `json:"sent_at"`
	ReadAt *time.Time  `json:"read_at"`
	ToUser UserSummary `json:"to_user"`
}

// ReadReceipt is the result of marking a message read.
type ReadReceipt struct {
	ID     int64     `json:"id"`
	ReadAt time.Time `json:"read_at"`
}
