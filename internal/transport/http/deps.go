package http

import (
	"context"

	"github.com/abytech-hub/notification-core/internal/domain"
)

// SubscriptionRepository is the minimal interface the router requires from a push subscription store.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, s *domain.DeviceSubscription) (*domain.DeviceSubscription, error)
	ListByOwner(ctx context.Context, owner domain.Recipient) ([]domain.DeviceSubscription, error)
	ListByEndpoint(ctx context.Context, endpoint string) ([]domain.DeviceSubscription, error)
	// ListByType and CountByType read the user_type GSI; neither scans the table.
	ListByType(ctx context.Context, t domain.RecipientType) ([]domain.DeviceSubscription, error)
	CountByType(ctx context.Context, t domain.RecipientType) (int, error)
	Delete(ctx context.Context, owner domain.Recipient, endpoint string) (bool, error)
	DeleteAll(ctx context.Context, owner domain.Recipient) (int, error)
}

// NotificationRepository is the minimal interface the router requires from a notification store.
type NotificationRepository interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListForRecipient(ctx context.Context, rc domain.Recipient, q domain.NotificationQuery) ([]domain.Notification, int, error)
	MarkRead(ctx context.Context, notificationID string, rc domain.Recipient) (bool, error)
	ListUnreadIDs(ctx context.Context, rc domain.Recipient) ([]string, error)
	CountUnread(ctx context.Context, rc domain.Recipient) (int, error)
}

// EventPublisher is satisfied by the SNS publisher.
type EventPublisher interface {
	PublishNotificationCreated(ctx context.Context, n *domain.Notification) error
}
