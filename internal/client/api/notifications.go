package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/abytech-hub/notification-core/internal/domain"
)

// NotificationClient calls the notification backend on behalf of the token's recipient.
type NotificationClient struct {
	c *Client
}

func NewNotificationClient(c *Client) *NotificationClient {
	return &NotificationClient{c: c}
}

func (n *NotificationClient) List(ctx context.Context, q domain.NotificationQuery) (*domain.NotificationPage, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	var page domain.NotificationPage
	if err := n.c.do(ctx, "list notifications", "Failed to fetch notifications",
		http.MethodGet, "/notifications?"+v.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (n *NotificationClient) MarkAsRead(ctx context.Context, notificationID string) error {
	return n.c.do(ctx, "mark as read", "Failed to mark notification as read",
		http.MethodPut, "/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil)
}

func (n *NotificationClient) MarkAllAsRead(ctx context.Context) error {
	return n.c.do(ctx, "mark all as read", "Failed to mark all notifications as read",
		http.MethodPut, "/notifications/mark-all-read", nil, nil)
}

func (n *NotificationClient) Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	var out domain.Notification
	if err := n.c.do(ctx, "create notification", "Failed to create notification",
		http.MethodPost, "/notifications", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (n *NotificationClient) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := n.c.do(ctx, "unread count", "Failed to fetch unread count",
		http.MethodGet, "/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
