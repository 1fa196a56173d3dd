package push

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/abytech-hub/notification-core/internal/client/api"
	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/abytech-hub/notification-core/internal/pkg/useragent"
)

type State string

const (
	StateUnregistered        State = "UNREGISTERED"
	StatePermissionRequested State = "PERMISSION_REQUESTED"
	StatePermissionGranted   State = "PERMISSION_GRANTED"
	StatePermissionDenied    State = "PERMISSION_DENIED"
	StateSubscribed          State = "SUBSCRIBED"
	StateUnsubscribed        State = "UNSUBSCRIBED"
)

const (
	MsgNotSupported      = "Push notifications not supported in this browser"
	MsgNoRegistration    = "Push notifications not supported: no active service worker"
	MsgPermissionDenied  = "Notification permission denied"
	MsgVAPIDMissing      = "VAPID public key not configured"
	MsgVAPIDInvalid      = "VAPID public key is invalid"
	MsgNoRecipient       = "No recipient set"
	MsgNoLocal           = "No active push subscription on this device"
	MsgSubscribed        = "Subscribed to push notifications"
	MsgUnsubscribed      = "Unsubscribed from push notifications"
	MsgAllUnsubscribed   = "Unsubscribed all devices"
	MsgSubscribeFailed   = "Failed to subscribe"
	MsgUnsubscribeFailed = "Failed to unsubscribe device"
)

// PreconditionError is returned before any platform or registry side effect.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

// Result is what the settings UI shows after an action.
type Result struct {
	Success bool
	Message string
}

// Registry is the Device Subscription Registry; *api.RegistryClient satisfies it.
type Registry interface {
	Subscribe(ctx context.Context, req domain.SubscribeRequest) (*api.Result, error)
	UnsubscribeDevice(ctx context.Context, req domain.UnsubscribeDeviceRequest) (*api.Result, error)
	UnsubscribeAll(ctx context.Context, req domain.UnsubscribeAllRequest) (*api.Result, error)
	List(ctx context.Context, owner domain.Recipient) ([]domain.DeviceSubscription, error)
}

type vapidKeySource interface {
	VAPIDPublicKey(ctx context.Context) (string, error)
}

// Device is a registry entry flagged when it is this browser context.
type Device struct {
	domain.DeviceSubscription
	Current bool `json:"current"`
}

type Option func(*Client)

// WithVAPIDPublicKey sets the application server key. Without it the key is
// fetched from the registry when the registry can serve it.
func WithVAPIDPublicKey(key string) Option {
	return func(c *Client) { c.vapidKey = key }
}

func WithEncodingStrategy(s EncodingStrategy) Option {
	return func(c *Client) { c.encoding = s }
}

// Client drives one browser context's push subscription. Actions are
// serialized: a subscribe never overlaps an unsubscribe.
type Client struct {
	platform Platform
	registry Registry
	vapidKey string
	encoding EncodingStrategy

	action sync.Mutex

	mu        sync.Mutex
	state     State
	recipient *domain.Recipient
}

func NewClient(platform Platform, registry Registry, opts ...Option) *Client {
	c := &Client{
		platform: platform,
		registry: registry,
		encoding: KeyPresenceEncoding,
		state:    StateUnregistered,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) SetRecipient(r domain.Recipient) {
	c.mu.Lock()
	rc := r
	c.recipient = &rc
	c.mu.Unlock()
}

func (c *Client) ClearRecipient() {
	c.mu.Lock()
	c.recipient = nil
	c.mu.Unlock()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) currentRecipient() (domain.Recipient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recipient == nil {
		return domain.Recipient{}, &PreconditionError{Message: MsgNoRecipient}
	}
	return *c.recipient, nil
}

func (c *Client) registration(ctx context.Context) (Registration, error) {
	if !c.platform.NotificationsSupported() {
		return nil, &PreconditionError{Message: MsgNotSupported}
	}
	reg, err := c.platform.Registration(ctx)
	if err != nil {
		return nil, fmt.Errorf("service worker registration: %w", err)
	}
	if reg == nil {
		return nil, &PreconditionError{Message: MsgNoRegistration}
	}
	return reg, nil
}

func (c *Client) applicationServerKey(ctx context.Context) ([]byte, error) {
	key := c.vapidKey
	if key == "" {
		if src, ok := c.registry.(vapidKeySource); ok {
			fetched, err := src.VAPIDPublicKey(ctx)
			if err != nil {
				slog.Warn("vapid public key fetch failed", "error", err)
			}
			key = fetched
		}
	}
	if key == "" {
		return nil, &PreconditionError{Message: MsgVAPIDMissing}
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil || len(raw) != 65 || raw[0] != 0x04 {
		return nil, &PreconditionError{Message: MsgVAPIDInvalid}
	}
	return raw, nil
}

func failed(msg string, err error) (Result, error) {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return Result{Message: pe.Message}, err
	}
	var ae *api.Error
	if errors.As(err, &ae) {
		return Result{Message: ae.Message}, err
	}
	return Result{Message: msg}, err
}

// SubscribeToNotifications asks for permission, subscribes this context and
// registers it. A registry failure undoes the local subscription.
func (c *Client) SubscribeToNotifications(ctx context.Context, label string) (Result, error) {
	c.action.Lock()
	defer c.action.Unlock()

	owner, err := c.currentRecipient()
	if err != nil {
		return failed(MsgSubscribeFailed, err)
	}
	reg, err := c.registration(ctx)
	if err != nil {
		return failed(MsgSubscribeFailed, err)
	}
	key, err := c.applicationServerKey(ctx)
	if err != nil {
		return failed(MsgSubscribeFailed, err)
	}

	c.setState(StatePermissionRequested)
	perm, err := c.platform.RequestPermission(ctx)
	if err != nil {
		c.setState(StateUnregistered)
		return failed(MsgSubscribeFailed, fmt.Errorf("request permission: %w", err))
	}
	if perm != PermissionGranted {
		c.setState(StatePermissionDenied)
		return failed(MsgPermissionDenied, &PreconditionError{Message: MsgPermissionDenied})
	}
	c.setState(StatePermissionGranted)

	sub, err := reg.Subscribe(ctx, SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: key})
	if err != nil {
		return failed(MsgSubscribeFailed, fmt.Errorf("platform subscribe: %w", err))
	}
	if sub == nil {
		if uerr := reg.Unsubscribe(ctx); uerr != nil {
			slog.Warn("undo empty platform subscription", "error", uerr)
		}
		return failed(MsgSubscribeFailed, errors.New("platform subscribe returned no subscription"))
	}

	if label == "" {
		label = useragent.Describe(c.platform.UserAgent())
	}
	body := domain.PushSubscriptionJSON{}.FromWebPush(sub)
	body.ContentEncoding = c.encoding(c.platform, sub)

	res, err := c.registry.Subscribe(ctx, domain.SubscribeRequest{
		UserID:       owner.ID,
		Type:         owner.Type,
		Subscription: body,
		Label:        label,
	})
	if err != nil {
		if uerr := reg.Unsubscribe(ctx); uerr != nil {
			slog.Warn("local push subscription left after registry failure", "endpoint", sub.Endpoint, "error", uerr)
		}
		return failed(MsgSubscribeFailed, err)
	}

	c.setState(StateSubscribed)
	msg := MsgSubscribed
	if res != nil && res.Message != "" {
		msg = res.Message
	}
	return Result{Success: true, Message: msg}, nil
}

// UnsubscribeFromNotifications removes this context's subscription locally
// and from the registry. Without a local subscription it does nothing.
func (c *Client) UnsubscribeFromNotifications(ctx context.Context) (Result, error) {
	c.action.Lock()
	defer c.action.Unlock()

	owner, err := c.currentRecipient()
	if err != nil {
		return failed(MsgUnsubscribeFailed, err)
	}
	reg, sub, err := c.local(ctx)
	if err != nil {
		return failed(MsgUnsubscribeFailed, err)
	}
	if sub == nil {
		return Result{Success: true, Message: MsgNoLocal}, nil
	}

	if err := reg.Unsubscribe(ctx); err != nil {
		return failed(MsgUnsubscribeFailed, fmt.Errorf("platform unsubscribe: %w", err))
	}
	c.setState(StateUnsubscribed)
	if _, err := c.registry.UnsubscribeDevice(ctx, domain.UnsubscribeDeviceRequest{
		UserID:   owner.ID,
		Type:     owner.Type,
		Endpoint: sub.Endpoint,
	}); err != nil {
		return failed(MsgUnsubscribeFailed, err)
	}
	return Result{Success: true, Message: MsgUnsubscribed}, nil
}

// UnsubscribeAllDevices clears the registry for the recipient, then this
// context's local subscription when there is one.
func (c *Client) UnsubscribeAllDevices(ctx context.Context) (Result, error) {
	c.action.Lock()
	defer c.action.Unlock()

	owner, err := c.currentRecipient()
	if err != nil {
		return failed("Failed to unsubscribe all devices", err)
	}
	res, err := c.registry.UnsubscribeAll(ctx, domain.UnsubscribeAllRequest{UserID: owner.ID, Type: owner.Type})
	if err != nil {
		return failed("Failed to unsubscribe all devices", err)
	}

	reg, sub, err := c.local(ctx)
	if err != nil {
		var pe *PreconditionError
		if !errors.As(err, &pe) {
			slog.Warn("local push subscription not checked", "error", err)
		}
	} else if sub != nil {
		if err := reg.Unsubscribe(ctx); err != nil {
			slog.Warn("local push subscription not removed", "endpoint", sub.Endpoint, "error", err)
		}
	}
	c.setState(StateUnsubscribed)

	msg := MsgAllUnsubscribed
	if res != nil && res.Message != "" {
		msg = res.Message
	}
	return Result{Success: true, Message: msg}, nil
}

// CheckSubscriptionStatus reports whether this context's endpoint is in the
// registry and moves the state machine to match.
func (c *Client) CheckSubscriptionStatus(ctx context.Context) (bool, error) {
	c.action.Lock()
	defer c.action.Unlock()
	return c.checkLocked(ctx)
}

func (c *Client) checkLocked(ctx context.Context) (bool, error) {
	owner, err := c.currentRecipient()
	if err != nil {
		return false, err
	}
	_, sub, err := c.local(ctx)
	if err != nil {
		return false, err
	}
	if sub == nil {
		if c.State() == StateSubscribed {
			c.setState(StateUnsubscribed)
		}
		return false, nil
	}
	devices, err := c.registry.List(ctx, owner)
	if err != nil {
		return false, err
	}
	for _, d := range devices {
		if d.Endpoint == sub.Endpoint {
			c.setState(StateSubscribed)
			return true, nil
		}
	}
	c.setState(StateUnsubscribed)
	return false, nil
}

// AutoSubscribe runs after authentication. It subscribes when this context
// is not yet registered; failures are logged and never returned.
func (c *Client) AutoSubscribe(ctx context.Context) {
	subscribed, err := c.CheckSubscriptionStatus(ctx)
	if err != nil {
		slog.Warn("push status check failed", "error", err)
	}
	if subscribed {
		return
	}
	if _, err := c.SubscribeToNotifications(ctx, ""); err != nil {
		slog.Warn("auto-subscribe failed", "error", err)
	}
}

// Devices lists the recipient's registered devices, marking this context.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	owner, err := c.currentRecipient()
	if err != nil {
		return nil, err
	}
	subs, err := c.registry.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	var current string
	if _, sub, err := c.local(ctx); err == nil && sub != nil {
		current = sub.Endpoint
	}
	out := make([]Device, 0, len(subs))
	for _, s := range subs {
		out = append(out, Device{DeviceSubscription: s, Current: current != "" && s.Endpoint == current})
	}
	return out, nil
}

func (c *Client) local(ctx context.Context) (Registration, *webpush.Subscription, error) {
	reg, err := c.registration(ctx)
	if err != nil {
		return nil, nil, err
	}
	sub, err := reg.Subscription(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read push subscription: %w", err)
	}
	return reg, sub, nil
}
