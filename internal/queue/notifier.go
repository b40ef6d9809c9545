package queue

import (
	"context"
	"encoding/json"
	"time"

	"learncenter/internal/attendance"
)

// Notifier publishes attendance changes as TypeAttendanceChanged messages.
type Notifier struct {
	Queue   Queue
	Timeout time.Duration
}

var _ attendance.Notifier = Notifier{}

func (n Notifier) AttendanceChanged(ctx context.Context, ch attendance.Change) error {
	body, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return n.Queue.Publish(ctx, Message{Type: TypeAttendanceChanged, Body: body})
}
