// Package serviceworker models the push, click and message handlers that run
// in the browser's service-worker context.
package serviceworker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abytech-hub/notification-core/internal/client/badge"
	"github.com/abytech-hub/notification-core/internal/domain"
)

const (
	DefaultTitle = "Abytech Hub"
	DefaultBody  = "You have a new notification"
	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/badge-72x72.png"
)

// Notification is what the worker asks the platform to display.
type Notification struct {
	Title string
	Body  string
	Icon  string
	Badge string
	URL   string
}

// Display is the platform surface available inside the worker.
type Display interface {
	ShowNotification(ctx context.Context, n Notification) error
	// CloseNotifications closes every notification this worker has shown.
	CloseNotifications(ctx context.Context) error
	SetBadge(ctx context.Context, count int) error
	ClearBadge(ctx context.Context) error
	OpenWindow(ctx context.Context, url string) error
}

type Worker struct {
	display Display
}

func New(display Display) *Worker {
	return &Worker{display: display}
}

// HandlePush shows the notification carried by a push event. A payload that
// is not JSON is logged and dropped; an empty payload shows a generic one.
func (w *Worker) HandlePush(ctx context.Context, data []byte) error {
	n := Notification{Title: DefaultTitle, Body: DefaultBody, Icon: DefaultIcon, Badge: DefaultBadge}
	if len(strings.TrimSpace(string(data))) > 0 {
		var p domain.PushPayload
		if err := json.Unmarshal(data, &p); err != nil {
			slog.Warn("push payload is not json", "error", err)
			return nil
		}
		if p.Title != "" {
			n.Title = p.Title
		}
		n.Body = p.Body
		if p.Icon != "" {
			n.Icon = p.Icon
		}
		n.URL = p.URL
	}
	if err := w.display.ShowNotification(ctx, n); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	return nil
}

// HandleClick opens the clicked notification's url, if it has one.
func (w *Worker) HandleClick(ctx context.Context, n Notification) error {
	if n.URL == "" {
		return nil
	}
	if err := w.display.OpenWindow(ctx, n.URL); err != nil {
		return fmt.Errorf("open %s: %w", n.URL, err)
	}
	return nil
}

func (w *Worker) HandleMessage(ctx context.Context, m badge.Message) error {
	switch msg := m.(type) {
	case badge.UpdateBadge:
		if msg.Count <= 0 {
			return w.display.ClearBadge(ctx)
		}
		return w.display.SetBadge(ctx, msg.Count)
	case badge.NotificationRead:
		return w.display.CloseNotifications(ctx)
	default:
		slog.Debug("service worker message ignored", "type", m.Type())
		return nil
	}
}

// Run applies messages from the app until ctx ends or messages closes.
func (w *Worker) Run(ctx context.Context, messages <-chan badge.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			if err := w.HandleMessage(ctx, m); err != nil {
				slog.Warn("service worker message failed", "type", m.Type(), "error", err)
			}
		}
	}
}
