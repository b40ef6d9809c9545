package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learncenter/internal/attendance"
	"learncenter/internal/store"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}
	return Message{}
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(4)
	out, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{Type: "a", Body: json.RawMessage(`{"n":1}`)}))
	msg := receive(t, out)
	assert.Equal(t, "a", msg.Type)
	assert.JSONEq(t, `{"n":1}`, string(msg.Body))

	cancel()
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "b"}), context.DeadlineExceeded)
}

func TestSerialize(t *testing.T) {
	raw, err := serialize(Message{Type: TypeAttendanceChanged, Body: json.RawMessage(`{"day":"2024-03-01"}`)})
	require.NoError(t, err)

	msg, err := deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeAttendanceChanged, msg.Type)
	assert.JSONEq(t, `{"day":"2024-03-01"}`, string(msg.Body))

	_, err = deserialize("type|body")
	assert.Error(t, err)
	_, err = deserialize(`{"body":{}}`)
	assert.Error(t, err)
}

func TestNotifierPublishesChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)
	out, err := q.Consume(ctx)
	require.NoError(t, err)

	n := Notifier{Queue: q}
	require.NoError(t, n.AttendanceChanged(ctx, attendance.Change{Action: attendance.ActionCreated, RecordID: "r1", Day: "2024-03-01"}))

	msg := receive(t, out)
	assert.Equal(t, TypeAttendanceChanged, msg.Type)
	var ch attendance.Change
	require.NoError(t, json.Unmarshal(msg.Body, &ch))
	assert.Equal(t, "r1", ch.RecordID)
	assert.Equal(t, "2024-03-01", ch.Day)
}

func TestRedisQueue(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 and REDIS_ADDR to run")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	r := store.NewRedis(addr)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, r.Healthy(ctx))

	q := NewRedisQueue(r.Client, "learncenter:test:"+time.Now().Format("150405.000"))
	out, err := q.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, Message{Type: "ping", Body: json.RawMessage(`{}`)}))
	assert.Equal(t, "ping", receive(t, out).Type)
}
