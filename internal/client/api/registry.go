package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/abytech-hub/notification-core/internal/domain"
)

// Result mirrors the {success, message} envelope of registry mutations.
type Result struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Count   *int                       `json:"count,omitempty"`
	Data    *domain.DeviceSubscription `json:"data,omitempty"`
}

// RegistryClient calls the Device Subscription Registry. It never retries.
type RegistryClient struct {
	c *Client
}

func NewRegistryClient(c *Client) *RegistryClient {
	return &RegistryClient{c: c}
}

func (r *RegistryClient) Subscribe(ctx context.Context, req domain.SubscribeRequest) (*Result, error) {
	var out Result
	if err := r.c.do(ctx, "subscribe", "Failed to subscribe",
		http.MethodPost, "/push-notification/subscribe", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RegistryClient) UnsubscribeDevice(ctx context.Context, req domain.UnsubscribeDeviceRequest) (*Result, error) {
	var out Result
	if err := r.c.do(ctx, "unsubscribe device", "Failed to unsubscribe device",
		http.MethodDelete, "/push-notification/unsubscribe/device", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RegistryClient) UnsubscribeAll(ctx context.Context, req domain.UnsubscribeAllRequest) (*Result, error) {
	var out Result
	if err := r.c.do(ctx, "unsubscribe all", "Failed to unsubscribe all devices",
		http.MethodDelete, "/push-notification/unsubscribe/all", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RegistryClient) List(ctx context.Context, owner domain.Recipient) ([]domain.DeviceSubscription, error) {
	var out []domain.DeviceSubscription
	path := "/push-notification/subscriptions/" + url.PathEscape(owner.ID) + "/" + url.PathEscape(string(owner.Type))
	if err := r.c.do(ctx, "list subscriptions", "Failed to fetch subscriptions",
		http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VAPIDPublicKey fetches the server's application server key.
func (r *RegistryClient) VAPIDPublicKey(ctx context.Context) (string, error) {
	var out struct {
		PublicKey string `json:"publicKey"`
	}
	if err := r.c.do(ctx, "vapid public key", "VAPID public key not configured",
		http.MethodGet, "/push-notification/vapid-public-key", nil, &out); err != nil {
		return "", err
	}
	return out.PublicKey, nil
}
