package realtime

import (
	"context"
	"encoding/json"

	"learncenter/internal/attendance"
	"learncenter/internal/logger"
	"learncenter/internal/queue"
)

// Relay consumes attendance change messages from q and broadcasts them on
// hub until ctx is done. Other message types are ignored.
func Relay(ctx context.Context, q queue.Queue, hub *Hub, log *logger.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if msg.Type != queue.TypeAttendanceChanged {
			continue
		}
		var ch attendance.Change
		if err := json.Unmarshal(msg.Body, &ch); err != nil {
			log.Warn("relay: bad attendance change", err)
			continue
		}
		hub.Broadcast(FrameFor(ch))
	}
	return ctx.Err()
}
