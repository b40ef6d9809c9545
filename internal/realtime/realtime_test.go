package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learncenter/internal/attendance"
	"learncenter/internal/queue"
)

func startHub(t *testing.T) (*Hub, string, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.Handler())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", cancel
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients(context.Background()) == want }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHubBroadcast(t *testing.T) {
	hub, url, cancel := startHub(t)
	defer cancel()

	all := dial(t, hub, url, 1)
	course := dial(t, hub, url+"?course_id=c1", 2)

	hub.Broadcast(Frame{Type: FrameInvalidate, Action: "created", Day: "2024-03-01", CourseID: "c2"})
	hub.Broadcast(Frame{Type: FrameInvalidate, Action: "updated", Day: "2024-03-01", CourseID: "c1"})

	assert.Equal(t, "c2", readFrame(t, all).CourseID)
	assert.Equal(t, "c1", readFrame(t, all).CourseID)

	// the course subscriber skips the c2 frame
	f := readFrame(t, course)
	assert.Equal(t, "c1", f.CourseID)
	assert.Equal(t, "updated", f.Action)
}

func TestHubDropsClosedClients(t *testing.T) {
	hub, url, cancel := startHub(t)
	defer cancel()

	conn := dial(t, hub, url, 1)
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients(context.Background()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRelay(t *testing.T) {
	hub, url, cancel := startHub(t)
	defer cancel()
	conn := dial(t, hub, url, 1)

	q := queue.NewInMemory(8)
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Relay(ctx, q, hub, nil) }()

	require.NoError(t, q.Publish(ctx, queue.Message{Type: "something.else", Body: json.RawMessage(`{}`)}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeAttendanceChanged, Body: json.RawMessage(`not json`)}))
	n := queue.Notifier{Queue: q}
	require.NoError(t, n.AttendanceChanged(ctx, attendance.Change{Action: attendance.ActionDeleted, RecordID: "r9", Day: "2024-03-02"}))

	f := readFrame(t, conn)
	assert.Equal(t, FrameInvalidate, f.Type)
	assert.Equal(t, "deleted", f.Action)
	assert.Equal(t, "r9", f.RecordID)
	assert.Equal(t, "2024-03-02", f.Day)

	stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
