package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abytech-hub/notification-core/internal/domain"
	webpushinfra "github.com/abytech-hub/notification-core/internal/infrastructure/webpush"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent deliveries in one fan-out.
const DefaultWorkers = 4

// Service fans a payload out to every registered device of a recipient or recipient type.
type Service interface {
	SendToUser(ctx context.Context, r domain.Recipient, p domain.PushPayload) (domain.SendReport, error)
	SendToAll(ctx context.Context, t domain.RecipientType, p domain.PushPayload) (domain.SendReport, error)
}

type subscriptionSource interface {
	List(ctx context.Context, owner domain.Recipient) ([]domain.DeviceSubscription, error)
	ListByType(ctx context.Context, t domain.RecipientType) ([]domain.DeviceSubscription, error)
	RemoveStale(ctx context.Context, sub domain.DeviceSubscription) error
}

type service struct {
	subs    subscriptionSource
	sender  webpushinfra.Sender
	workers int
}

// NewService returns a fan-out service. A nil sender means push is not
// configured and every send fails with domain.ErrPushDisabled.
func NewService(subs subscriptionSource, sender webpushinfra.Sender, workers int) Service {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &service{subs: subs, sender: sender, workers: workers}
}

func (s *service) SendToUser(ctx context.Context, r domain.Recipient, p domain.PushPayload) (domain.SendReport, error) {
	if s.sender == nil {
		return domain.SendReport{}, domain.ErrPushDisabled
	}
	subs, err := s.subs.List(ctx, r)
	if err != nil {
		return domain.SendReport{}, err
	}
	return s.fanOut(ctx, subs, p)
}

func (s *service) SendToAll(ctx context.Context, t domain.RecipientType, p domain.PushPayload) (domain.SendReport, error) {
	if s.sender == nil {
		return domain.SendReport{}, domain.ErrPushDisabled
	}
	subs, err := s.subs.ListByType(ctx, t)
	if err != nil {
		return domain.SendReport{}, err
	}
	return s.fanOut(ctx, subs, p)
}

func (s *service) fanOut(ctx context.Context, subs []domain.DeviceSubscription, p domain.PushPayload) (domain.SendReport, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return domain.SendReport{}, fmt.Errorf("marshal payload: %w", err)
	}

	var (
		mu     sync.Mutex
		report domain.SendReport
		g      errgroup.Group
	)
	g.SetLimit(s.workers)
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			sendErr := s.sender.Send(ctx, &sub, body)
			pruned := false
			if errors.Is(sendErr, webpushinfra.ErrGone) {
				if err := s.subs.RemoveStale(ctx, sub); err != nil {
					slog.Warn("remove stale subscription", "endpoint", sub.Endpoint, "error", err)
				} else {
					pruned = true
				}
			} else if sendErr != nil {
				slog.Warn("push delivery failed", "owner", sub.Owner().Key(), "endpoint", sub.Endpoint, "error", sendErr)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case sendErr == nil:
				report.Sent++
			case pruned:
				report.Pruned++
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	return report, ctx.Err()
}
