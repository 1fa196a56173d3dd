// Package session wires the client core for one signed-in recipient.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/abytech-hub/notification-core/internal/client/api"
	"github.com/abytech-hub/notification-core/internal/client/badge"
	"github.com/abytech-hub/notification-core/internal/client/push"
	"github.com/abytech-hub/notification-core/internal/client/realtime"
	"github.com/abytech-hub/notification-core/internal/client/store"
	"github.com/abytech-hub/notification-core/internal/domain"
	jwtinfra "github.com/abytech-hub/notification-core/internal/infrastructure/jwt"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"
)

// DefaultReconcileInterval is how often Watch refetches to correct optimistic drift.
const DefaultReconcileInterval = 2 * time.Minute

type Config struct {
	BaseURL string
	Token   string
	// TokenFunc, when set, is consulted on every request instead of Token.
	TokenFunc         func() string
	HTTPClient        *http.Client
	Platform          push.Platform // nil outside a browser; push is then unavailable
	Port              badge.Port
	VAPIDPublicKey    string
	ReconcileInterval time.Duration
	// Encoding decides the content encoding when the platform does not
	// advertise one. Defaults to push.KeyPresenceEncoding.
	Encoding push.EncodingStrategy
}

type Session struct {
	Client        *api.Client
	Notifications *api.NotificationClient
	Registry      *api.RegistryClient
	Store         *store.Store
	Badge         *badge.Notifier
	Push          *push.Client

	reconcileInterval time.Duration

	mu       sync.Mutex
	autoStop context.CancelFunc
	autoDone chan struct{}
}

func New(cfg Config) *Session {
	opts := []api.Option{api.WithToken(cfg.Token)}
	if cfg.TokenFunc != nil {
		opts = append(opts, api.WithTokenFunc(cfg.TokenFunc))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, api.WithHTTPClient(cfg.HTTPClient))
	}
	c := api.New(cfg.BaseURL, opts...)
	s := &Session{
		Client:            c,
		Notifications:     api.NewNotificationClient(c),
		Registry:          api.NewRegistryClient(c),
		Badge:             badge.NewNotifier(cfg.Port),
		reconcileInterval: cfg.ReconcileInterval,
	}
	if s.reconcileInterval <= 0 {
		s.reconcileInterval = DefaultReconcileInterval
	}
	s.Store = store.New(s.Notifications, s.Badge)
	if cfg.Platform != nil {
		popts := []push.Option{push.WithEncodingStrategy(push.CapabilityEncoding(cfg.Encoding))}
		if cfg.VAPIDPublicKey != "" {
			popts = append(popts, push.WithVAPIDPublicKey(cfg.VAPIDPublicKey))
		}
		s.Push = push.NewClient(cfg.Platform, s.Registry, popts...)
	}
	return s
}

// RecipientFromToken reads user_id and user_type from a bearer token without
// checking its signature; the server verifies it on every call.
func RecipientFromToken(token string) (domain.Recipient, error) {
	var claims jwtinfra.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return domain.Recipient{}, fmt.Errorf("parse token: %w", err)
	}
	rc := claims.Recipient()
	if rc.ID == "" || !rc.Type.Valid() {
		return domain.Recipient{}, fmt.Errorf("token has no recipient identity: %w", domain.ErrUnauthorized)
	}
	return rc, nil
}

// Login binds the session to the token's recipient and loads the first page.
// Device registration for push starts in the background and does not hold up
// Login; a permission prompt may stay open long after it returns.
func (s *Session) Login(ctx context.Context) (domain.Recipient, error) {
	rc, err := RecipientFromToken(s.Client.Token())
	if err != nil {
		return domain.Recipient{}, err
	}
	s.Store.SetRecipient(rc)
	if s.Push != nil {
		s.Push.SetRecipient(rc)
		s.startAutoSubscribe(ctx)
	}
	if err := s.Store.FetchNotifications(ctx); err != nil {
		return rc, err
	}
	return rc, nil
}

// startAutoSubscribe outlives the Login context; Logout or the next Login
// cancels it.
func (s *Session) startAutoSubscribe(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoStop != nil {
		s.autoStop()
	}
	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.autoStop, s.autoDone = cancel, done
	go func() {
		defer close(done)
		defer cancel()
		s.Push.AutoSubscribe(actx)
	}()
}

// AutoSubscribeDone is closed once the registration started by the last Login
// has finished. Without one it returns a closed channel.
func (s *Session) AutoSubscribeDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoDone == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.autoDone
}

// Logout stops a pending registration and forgets the recipient.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.autoStop != nil {
		s.autoStop()
	}
	s.mu.Unlock()
	s.Store.ClearRecipient()
	if s.Push != nil {
		s.Push.ClearRecipient()
	}
}

// Watch streams realtime events into the store and reconciles periodically
// until ctx ends.
func (s *Session) Watch(ctx context.Context) error {
	conn, err := realtime.NewConn(s.Client.BaseURL(), s.Client.Token)
	if err != nil {
		return err
	}
	bridge := realtime.NewBridge(s.Store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conn.Run(gctx) })
	g.Go(func() error { return bridge.Run(gctx, conn) })
	g.Go(func() error {
		s.Store.Reconcile(gctx, s.reconcileInterval)
		return nil
	})
	err = g.Wait()
	if ctx.Err() != nil {
		slog.Debug("watch stopped", "error", err)
		return nil
	}
	return err
}
