package webpushinfra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/abytech-hub/notification-core/internal/config"
	"github.com/abytech-hub/notification-core/internal/domain"
)

// ErrGone is returned when the push service reports the endpoint no longer exists (404/410).
// The caller should drop the subscription.
var ErrGone = errors.New("push subscription gone")

// StatusError is a non-success answer from a push service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service answered %d: %s", e.Code, e.Body)
}

// Sender delivers one message to one device.
type Sender interface {
	Send(ctx context.Context, sub *domain.DeviceSubscription, payload []byte) error
}

type sender struct {
	httpClient *http.Client
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	tickler    *tickler
}

// NewSender returns a VAPID-authenticated web push sender. Subscriptions with
// keys receive the encrypted payload; keyless subscriptions receive an empty
// push that wakes the service worker.
func NewSender(cfg *config.Config) (Sender, error) {
	if !cfg.PushEnabled() {
		return nil, domain.ErrPushDisabled
	}
	httpClient := &http.Client{Timeout: 15 * time.Second}
	subscriber := strings.TrimPrefix(cfg.VAPIDSubject, "mailto:")
	t, err := newTickler(httpClient, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, cfg.PushTTL)
	if err != nil {
		return nil, err
	}
	return &sender{
		httpClient: httpClient,
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: subscriber,
		ttl:        cfg.PushTTL,
		tickler:    t,
	}, nil
}

func (s *sender) Send(ctx context.Context, sub *domain.DeviceSubscription, payload []byte) error {
	if !sub.HasKeys() {
		return s.tickler.tickle(ctx, sub.Endpoint)
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub.ToWebPush(), &webpush.Options{
		HTTPClient:      s.httpClient,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

func checkResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrGone
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
