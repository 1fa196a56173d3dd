package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/abytech-hub/notification-core/internal/pkg/id"
)

type Service interface {
	Create(ctx context.Context, sender *domain.Recipient, req domain.CreateNotificationRequest) (*domain.Notification, error)
	List(ctx context.Context, rc domain.Recipient, q domain.NotificationQuery) (*domain.NotificationPage, error)
	// MarkAsRead reports whether the flag changed. Marking twice is not an error.
	MarkAsRead(ctx context.Context, notificationID string, rc domain.Recipient) (bool, error)
	MarkAllAsRead(ctx context.Context, rc domain.Recipient) (int, error)
	UnreadCount(ctx context.Context, rc domain.Recipient) (int, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListForRecipient(ctx context.Context, rc domain.Recipient, q domain.NotificationQuery) ([]domain.Notification, int, error)
	MarkRead(ctx context.Context, notificationID string, rc domain.Recipient) (bool, error)
	ListUnreadIDs(ctx context.Context, rc domain.Recipient) ([]string, error)
	CountUnread(ctx context.Context, rc domain.Recipient) (int, error)
}

// Emitter delivers a realtime event to every live connection of a recipient.
type Emitter interface {
	Emit(rc domain.Recipient, event string, data interface{})
}

type pusher interface {
	SendToUser(ctx context.Context, r domain.Recipient, p domain.PushPayload) (domain.SendReport, error)
}

type eventPublisher interface {
	PublishNotificationCreated(ctx context.Context, n *domain.Notification) error
}

type service struct {
	repo      notificationStore
	emitter   Emitter
	pusher    pusher
	publisher eventPublisher
	now       func() time.Time
}

// ServiceDeps wires the notification backend. Pusher and Publisher may be nil.
type ServiceDeps struct {
	Repo      notificationStore
	Emitter   Emitter
	Pusher    pusher
	Publisher eventPublisher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:      deps.Repo,
		emitter:   deps.Emitter,
		pusher:    deps.Pusher,
		publisher: deps.Publisher,
		now:       time.Now,
	}
}

func (s *service) Create(ctx context.Context, sender *domain.Recipient, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	n := &domain.Notification{
		NotificationID: id.New(),
		Title:          strings.TrimSpace(req.Title),
		Message:        strings.TrimSpace(req.Message),
		CreatedAt:      s.now().UTC(),
	}
	if n.Title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrBadRequest)
	}
	if sender != nil && !sender.IsZero() {
		sid, st := sender.ID, sender.Type
		n.SenderID, n.SenderType = &sid, &st
	}
	seen := make(map[string]bool, len(req.Recipients))
	for _, nr := range req.Recipients {
		if !nr.Type.Valid() || nr.ID == "" {
			return nil, fmt.Errorf("invalid recipient %q: %w", nr.Recipient().Key(), domain.ErrBadRequest)
		}
		key := nr.Recipient().Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		nr.Read = false
		n.Recipients = append(n.Recipients, nr)
	}
	if len(n.Recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required: %w", domain.ErrBadRequest)
	}

	if err := s.repo.Put(ctx, n); err != nil {
		return nil, err
	}

	for _, nr := range n.Recipients {
		rc := nr.Recipient()
		s.emitter.Emit(rc, domain.EventNewNotification, n.FlattenFor(rc))
		s.push(ctx, rc, n, nr.Link)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishNotificationCreated(ctx, n); err != nil {
			slog.Warn("publish notification event", "notification_id", n.NotificationID, "error", err)
		}
	}
	return n, nil
}

// push is best effort: the notification is already stored and delivered in-app.
func (s *service) push(ctx context.Context, rc domain.Recipient, n *domain.Notification, link *string) {
	if s.pusher == nil {
		return
	}
	payload := domain.PushPayload{Title: n.Title, Body: n.Message}
	if link != nil {
		payload.URL = *link
	}
	report, err := s.pusher.SendToUser(ctx, rc, payload)
	if err != nil {
		slog.Warn("push notification", "recipient", rc.Key(), "notification_id", n.NotificationID, "error", err)
		return
	}
	slog.Debug("push notification", "recipient", rc.Key(), "sent", report.Sent, "failed", report.Failed, "pruned", report.Pruned)
}

func (s *service) List(ctx context.Context, rc domain.Recipient, q domain.NotificationQuery) (*domain.NotificationPage, error) {
	q = q.Normalize()
	items, total, err := s.repo.ListForRecipient(ctx, rc, q)
	if err != nil {
		return nil, err
	}
	return &domain.NotificationPage{
		Data: items,
		Meta: domain.PageMeta{
			Total:      total,
			TotalPages: domain.TotalPages(total, q.Limit),
			Page:       q.Page,
			Limit:      q.Limit,
		},
	}, nil
}

func (s *service) MarkAsRead(ctx context.Context, notificationID string, rc domain.Recipient) (bool, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return false, err
	}
	if !n.Targets(rc) {
		return false, fmt.Errorf("not a recipient of %s: %w", notificationID, domain.ErrForbidden)
	}
	changed, err := s.repo.MarkRead(ctx, notificationID, rc)
	if err != nil {
		return false, err
	}
	if changed {
		s.emitRead(notificationID, rc)
	}
	return changed, nil
}

func (s *service) MarkAllAsRead(ctx context.Context, rc domain.Recipient) (int, error) {
	ids, err := s.repo.ListUnreadIDs(ctx, rc)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, nid := range ids {
		changed, err := s.repo.MarkRead(ctx, nid, rc)
		if err != nil {
			return marked, err
		}
		if changed {
			marked++
			s.emitRead(nid, rc)
		}
	}
	return marked, nil
}

func (s *service) UnreadCount(ctx context.Context, rc domain.Recipient) (int, error) {
	return s.repo.CountUnread(ctx, rc)
}

func (s *service) emitRead(notificationID string, rc domain.Recipient) {
	s.emitter.Emit(rc, domain.EventNotificationRead, domain.NotificationRead{
		NotificationID: notificationID,
		RecipientID:    rc.ID,
		RecipientType:  rc.Type,
	})
}
