// Package realtime feeds live notification events into the client store.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/abytech-hub/notification-core/internal/domain"
)

// EventSource delivers decoded frames until the channel is closed.
type EventSource interface {
	Events() <-chan domain.RealtimeFrame
}

// Target is the state the bridge mutates; *store.Store satisfies it.
type Target interface {
	Receive(n domain.Notification) bool
	ApplyRead(ev domain.NotificationRead) bool
}

type Bridge struct {
	target Target
}

func NewBridge(target Target) *Bridge {
	return &Bridge{target: target}
}

// Handle applies one frame and reports whether the target changed. Repeated
// frames are harmless: duplicates and already-read events change nothing.
func (b *Bridge) Handle(frame domain.RealtimeFrame) (bool, error) {
	switch frame.Event {
	case domain.EventNewNotification:
		var n domain.Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			return false, fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		if n.NotificationID == "" {
			return false, fmt.Errorf("%s without id", frame.Event)
		}
		return b.target.Receive(n), nil
	case domain.EventNotificationRead:
		var ev domain.NotificationRead
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return false, fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		return b.target.ApplyRead(ev), nil
	default:
		slog.Debug("realtime event ignored", "event", frame.Event)
		return false, nil
	}
}

// Run consumes src until ctx ends or src closes. Bad frames are logged and skipped.
func (b *Bridge) Run(ctx context.Context, src EventSource) error {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := b.Handle(frame); err != nil {
				slog.Warn("realtime frame dropped", "event", frame.Event, "error", err)
			}
		}
	}
}
