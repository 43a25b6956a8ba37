// Package notify tells listeners that a message was sent.
//
// Notifications are fire-and-forget: the message is already stored when a
// publisher runs, so a publish failure is reported to the caller for logging
// and never undoes or fails the send.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/messagely/internal/model"
)

// ChannelPrefix is prepended to the recipient's username to form the
// pub/sub channel, e.g. "messages:bob".
const ChannelPrefix = "messages:"

// Publisher announces newly created messages.
type Publisher interface {
	MessageSent(ctx context.Context, msg model.Message) error
}

// Nop discards every notification. It is used when no broker is configured.
type Nop struct{}

func (Nop) MessageSent(context.Context, model.Message) error { return nil }

// Event is the JSON payload published for each new message. The body is
// left out: subscribers fetch the message through the API, which applies
// the usual access checks.
type Event struct {
	Type         string    `json:"type"`
	MessageID    int64     `json:"message_id"`
	FromUsername string    `json:"from_username"`
	ToUsername   string    `json:"to_username"`
	SentAt       time.Time `json:"sent_at"`
}

// NewEvent builds the payload for msg.
func NewEvent(msg model.Message) Event {
	return Event{
		Type:         "new_message",
		MessageID:    msg.ID,
		FromUsername: msg.FromUsername,
		ToUsername:   msg.ToUsername,
		SentAt:       msg.SentAt,
	}
}

// Channel returns the channel notifications for username are published on.
func Channel(username string) string {
	return ChannelPrefix + username
}

// redisPublisher is the part of *redis.Client RedisPublisher needs.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes events with Redis PUBLISH.
type RedisPublisher struct {
	rdb redisPublisher
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(rdb redisPublisher) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Dial parses a redis:// URL, connects, and checks the server answers.
// The returned close func releases the connection pool.
func Dial(ctx context.Context, url string) (*RedisPublisher, func() error, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("notify: parsing REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("notify: connecting to redis: %w", err)
	}

	return NewRedisPublisher(rdb), rdb.Close, nil
}

func (p *RedisPublisher) MessageSent(ctx context.Context, msg model.Message) error {
	payload, err := json.Marshal(NewEvent(msg))
	if err != nil {
		return fmt.Errorf("notify: encoding event: %w", err)
	}

	if err := p.rdb.Publish(ctx, Channel(msg.ToUsername), payload).Err(); err != nil {
		return fmt.Errorf("notify: publishing message %d: %w", msg.ID, err)
	}
	return nil
}
