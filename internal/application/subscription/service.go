package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/abytech-hub/notification-core/internal/pkg/id"
	"github.com/abytech-hub/notification-core/internal/pkg/useragent"
)

// Service is the Device Subscription Registry. Every operation is scoped by the
// owning recipient; the endpoint is the idempotency key within an owner.
type Service interface {
	Subscribe(ctx context.Context, req domain.SubscribeRequest, userAgent string) (*domain.DeviceSubscription, error)
	UnsubscribeDevice(ctx context.Context, owner domain.Recipient, endpoint string) (bool, error)
	UnsubscribeAll(ctx context.Context, owner domain.Recipient) (int, error)
	List(ctx context.Context, owner domain.Recipient) ([]domain.DeviceSubscription, error)
	ListByType(ctx context.Context, t domain.RecipientType) ([]domain.DeviceSubscription, error)
	CountByType(ctx context.Context, t domain.RecipientType) (int, error)
	// RemoveStale drops a subscription the push service reported as gone.
	RemoveStale(ctx context.Context, sub domain.DeviceSubscription) error
}

type subscriptionStore interface {
	Upsert(ctx context.Context, s *domain.DeviceSubscription) (*domain.DeviceSubscription, error)
	ListByOwner(ctx context.Context, owner domain.Recipient) ([]domain.DeviceSubscription, error)
	ListByEndpoint(ctx context.Context, endpoint string) ([]domain.DeviceSubscription, error)
	ListByType(ctx context.Context, t domain.RecipientType) ([]domain.DeviceSubscription, error)
	CountByType(ctx context.Context, t domain.RecipientType) (int, error)
	Delete(ctx context.Context, owner domain.Recipient, endpoint string) (bool, error)
	DeleteAll(ctx context.Context, owner domain.Recipient) (int, error)
}

type service struct {
	repo subscriptionStore
}

func NewService(repo subscriptionStore) Service {
	return &service{repo: repo}
}

func (s *service) Subscribe(ctx context.Context, req domain.SubscribeRequest, userAgent string) (*domain.DeviceSubscription, error) {
	owner := req.Owner()
	endpoint := strings.TrimSpace(req.Subscription.Endpoint)
	if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
		return nil, fmt.Errorf("endpoint must be an http(s) URL: %w", domain.ErrBadRequest)
	}

	sub := &domain.DeviceSubscription{
		SubscriptionID: id.New(),
		UserID:         owner.ID,
		UserType:       owner.Type,
		Endpoint:       endpoint,
		Label:          strings.TrimSpace(req.Label),
		UserAgent:      userAgent,
	}
	if k := req.Subscription.Keys; k != nil && k.P256dh != "" && k.Auth != "" {
		sub.P256dh, sub.Auth = &k.P256dh, &k.Auth
	}
	enc, err := resolveEncoding(req.Subscription.ContentEncoding, sub.HasKeys())
	if err != nil {
		return nil, err
	}
	sub.ContentEncoding = enc
	if sub.Label == "" {
		sub.Label = useragent.Describe(userAgent)
	}

	// One browser profile belongs to one recipient at a time.
	existing, err := s.repo.ListByEndpoint(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.Owner() == owner {
			continue
		}
		if _, err := s.repo.Delete(ctx, e.Owner(), endpoint); err != nil {
			return nil, err
		}
		slog.Info("push subscription moved", "endpoint", endpoint, "from", e.Owner().Key(), "to", owner.Key())
	}
	return s.repo.Upsert(ctx, sub)
}

// resolveEncoding fills in the encoding when the client did not send one.
// aes128gcm requires the encryption keys.
func resolveEncoding(enc domain.ContentEncoding, hasKeys bool) (domain.ContentEncoding, error) {
	switch {
	case enc == "" && hasKeys:
		return domain.EncodingAES128GCM, nil
	case enc == "":
		return domain.EncodingAESGCM, nil
	case !enc.Valid():
		return "", fmt.Errorf("unknown content encoding %q: %w", enc, domain.ErrBadRequest)
	case enc == domain.EncodingAES128GCM && !hasKeys:
		return "", fmt.Errorf("aes128gcm requires p256dh and auth keys: %w", domain.ErrBadRequest)
	}
	return enc, nil
}

func (s *service) UnsubscribeDevice(ctx context.Context, owner domain.Recipient, endpoint string) (bool, error) {
	return s.repo.Delete(ctx, owner, strings.TrimSpace(endpoint))
}

func (s *service) UnsubscribeAll(ctx context.Context, owner domain.Recipient) (int, error) {
	return s.repo.DeleteAll(ctx, owner)
}

func (s *service) List(ctx context.Context, owner domain.Recipient) ([]domain.DeviceSubscription, error) {
	return s.repo.ListByOwner(ctx, owner)
}

func (s *service) ListByType(ctx context.Context, t domain.RecipientType) ([]domain.DeviceSubscription, error) {
	return s.repo.ListByType(ctx, t)
}

func (s *service) CountByType(ctx context.Context, t domain.RecipientType) (int, error) {
	return s.repo.CountByType(ctx, t)
}

func (s *service) RemoveStale(ctx context.Context, sub domain.DeviceSubscription) error {
	removed, err := s.repo.Delete(ctx, sub.Owner(), sub.Endpoint)
	if err != nil {
		return err
	}
	if removed {
		slog.Info("stale push subscription removed", "owner", sub.Owner().Key(), "endpoint", sub.Endpoint)
	}
	return nil
}
