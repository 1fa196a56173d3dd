// Package badge carries one-way signals from the app context to the service worker.
package badge

import (
	"encoding/json"
	"fmt"
)

const (
	TypeUpdateBadge      = "UPDATE_BADGE"
	TypeNotificationRead = "NOTIFICATION_READ"
)

// Message is one typed signal. New kinds implement Type and register in Decode.
type Message interface {
	Type() string
}

// UpdateBadge sets the app badge to Count; zero clears it.
type UpdateBadge struct {
	Count int
}

func (UpdateBadge) Type() string { return TypeUpdateBadge }

// NotificationRead tells the worker that read state changed somewhere in the app.
type NotificationRead struct{}

func (NotificationRead) Type() string { return TypeNotificationRead }

type wireMessage struct {
	Type  string `json:"type"`
	Count *int   `json:"count,omitempty"`
}

// Encode renders m in the {type, count} shape posted to the worker.
func Encode(m Message) ([]byte, error) {
	w := wireMessage{Type: m.Type()}
	if ub, ok := m.(UpdateBadge); ok {
		c := ub.Count
		w.Count = &c
	}
	return json.Marshal(w)
}

func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode badge message: %w", err)
	}
	switch w.Type {
	case TypeUpdateBadge:
		if w.Count == nil {
			return nil, fmt.Errorf("%s without count", TypeUpdateBadge)
		}
		return UpdateBadge{Count: *w.Count}, nil
	case TypeNotificationRead:
		return NotificationRead{}, nil
	default:
		return nil, fmt.Errorf("unknown badge message type %q", w.Type)
	}
}
