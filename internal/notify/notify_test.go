package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/messagely/internal/model"
)

// fakeRedis records every Publish call.
type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)

	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func testMessage() model.Message {
	return model.Message{
		ID:           7,
		FromUsername: "alice",
		ToUsername:   "bob",
		Body:         "secret plans",
		SentAt:       time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC),
	}
}

func TestRedisPublisher_MessageSent(t *testing.T) {
	rdb := &fakeRedis{}
	p := NewRedisPublisher(rdb)

	err := p.MessageSent(context.Background(), testMessage())
	require.NoError(t, err)

	assert.Equal(t, "messages:bob", rdb.channel)

	var got Event
	require.NoError(t, json.Unmarshal(rdb.payload, &got))
	assert.Equal(t, "new_message", got.Type)
	assert.Equal(t, int64(7), got.MessageID)
	assert.Equal(t, "alice", got.FromUsername)
	assert.Equal(t, "bob", got.ToUsername)
	assert.True(t, got.SentAt.Equal(testMessage().SentAt))

	assert.NotContains(t, string(rdb.payload), "secret plans", "body must not be published")
}

func TestRedisPublisher_Error(t *testing.T) {
	boom := errors.New("connection refused")
	p := NewRedisPublisher(&fakeRedis{err: boom})

	err := p.MessageSent(context.Background(), testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.MessageSent(context.Background(), testMessage()))
}

func TestDial_BadURL(t *testing.T) {
	_, _, err := Dial(context.Background(), "not a url")
	assert.Error(t, err)
}
