package domain

import (
	"encoding/json"
	"time"
)

// Realtime event names delivered over the websocket channel.
const (
	EventNewNotification  = "new-notification"
	EventNotificationRead = "notification-read"
)

// RealtimeFrame is one websocket text message.
type RealtimeFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NotificationRecipient is one target of a notification with its own read state.
type NotificationRecipient struct {
	ID   string        `json:"id" dynamodbav:"id" validate:"required"`
	Type RecipientType `json:"type" dynamodbav:"type" validate:"required,oneof=ADMIN USER"`
	Read bool          `json:"read" dynamodbav:"read"`
	Link *string       `json:"link,omitempty" dynamodbav:"link,omitempty"`
}

func (nr NotificationRecipient) Recipient() Recipient {
	return Recipient{ID: nr.ID, Type: nr.Type}
}

type Notification struct {
	NotificationID string                  `json:"id" dynamodbav:"notification_id"`
	Recipients     []NotificationRecipient `json:"recipients" dynamodbav:"recipients"`
	SenderID       *string                 `json:"senderId,omitempty" dynamodbav:"sender_id,omitempty"`
	SenderType     *RecipientType          `json:"senderType,omitempty" dynamodbav:"sender_type,omitempty"`
	Title          string                  `json:"title" dynamodbav:"title"`
	Message        string                  `json:"message" dynamodbav:"message"`
	CreatedAt      time.Time               `json:"createdAt" dynamodbav:"created_at"`

	// Flattened slice of the viewing recipient; never persisted.
	Read *bool   `json:"read,omitempty" dynamodbav:"-"`
	Link *string `json:"link,omitempty" dynamodbav:"-"`
}

// RecipientIndex returns the position of r in Recipients, or -1.
func (n *Notification) RecipientIndex(r Recipient) int {
	for i, nr := range n.Recipients {
		if nr.ID == r.ID && nr.Type == r.Type {
			return i
		}
	}
	return -1
}

func (n *Notification) Targets(r Recipient) bool {
	return n.RecipientIndex(r) >= 0
}

// FlattenFor returns a copy of n carrying r's read state and link as top-level fields.
func (n Notification) FlattenFor(r Recipient) Notification {
	out := n
	out.Recipients = append([]NotificationRecipient(nil), n.Recipients...)
	if i := out.RecipientIndex(r); i >= 0 {
		read := out.Recipients[i].Read
		out.Read = &read
		out.Link = out.Recipients[i].Link
	}
	return out
}

type CreateNotificationRequest struct {
	Recipients []NotificationRecipient `json:"recipients" validate:"required,min=1,dive"`
	Title      string                  `json:"title" validate:"required,max=200"`
	Message    string                  `json:"message" validate:"required,max=4000"`
}

// NotificationRead is the payload of the notification-read realtime event.
type NotificationRead struct {
	NotificationID string        `json:"notificationId"`
	RecipientID    string        `json:"recipientId"`
	RecipientType  RecipientType `json:"recipientType,omitempty"`
}

// Matches reports whether the event concerns r. A missing type matches on id alone.
func (e NotificationRead) Matches(r Recipient) bool {
	if e.RecipientID != r.ID {
		return false
	}
	return e.RecipientType == "" || e.RecipientType == r.Type
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// NotificationQuery selects one page of a recipient's notifications.
type NotificationQuery struct {
	Page   int
	Limit  int
	Search string
}

// Normalize clamps the query to page >= 1 and 0 < limit <= MaxPageLimit.
func (q NotificationQuery) Normalize() NotificationQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

type PageMeta struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page,omitempty"`
	Limit      int `json:"limit,omitempty"`
}

type NotificationPage struct {
	Data []Notification `json:"data"`
	Meta PageMeta       `json:"meta"`
}

// TotalPages is ceil(total/limit); zero when there is nothing to show.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
