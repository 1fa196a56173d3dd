// Package push registers the current browser context for web push and keeps
// the subscription registry in step with it.
package push

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/abytech-hub/notification-core/internal/domain"
)

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// SubscribeOptions are passed to the platform push manager.
type SubscribeOptions struct {
	UserVisibleOnly      bool
	ApplicationServerKey []byte
}

// Registration is an active service-worker registration's push manager.
type Registration interface {
	Subscribe(ctx context.Context, opts SubscribeOptions) (*webpush.Subscription, error)
	// Subscription returns nil when this context has no push subscription.
	Subscription(ctx context.Context) (*webpush.Subscription, error)
	Unsubscribe(ctx context.Context) error
}

// Platform is the browser runtime.
type Platform interface {
	NotificationsSupported() bool
	RequestPermission(ctx context.Context) (Permission, error)
	// Registration returns nil when no service worker is active.
	Registration(ctx context.Context) (Registration, error)
	UserAgent() string
}

// EncodingReporter is implemented by platforms that advertise the push
// content encodings they support.
type EncodingReporter interface {
	SupportedContentEncodings() []domain.ContentEncoding
}

// EncodingStrategy picks the content encoding sent to the registry.
type EncodingStrategy func(p Platform, sub *webpush.Subscription) domain.ContentEncoding

func hasKeys(sub *webpush.Subscription) bool {
	return sub.Keys.P256dh != "" && sub.Keys.Auth != ""
}

// KeyPresenceEncoding is the default: aes128gcm when the subscription carries
// both keys, aesgcm otherwise.
func KeyPresenceEncoding(_ Platform, sub *webpush.Subscription) domain.ContentEncoding {
	if hasKeys(sub) {
		return domain.EncodingAES128GCM
	}
	return domain.EncodingAESGCM
}

// CapabilityEncoding prefers what the platform advertises through
// EncodingReporter and defers to fallback when it advertises nothing usable.
func CapabilityEncoding(fallback EncodingStrategy) EncodingStrategy {
	if fallback == nil {
		fallback = KeyPresenceEncoding
	}
	return func(p Platform, sub *webpush.Subscription) domain.ContentEncoding {
		rep, ok := p.(EncodingReporter)
		if !ok {
			return fallback(p, sub)
		}
		var modern, legacy bool
		for _, enc := range rep.SupportedContentEncodings() {
			switch enc {
			case domain.EncodingAES128GCM:
				modern = true
			case domain.EncodingAESGCM:
				legacy = true
			}
		}
		switch {
		case modern && hasKeys(sub):
			return domain.EncodingAES128GCM
		case legacy:
			return domain.EncodingAESGCM
		default:
			return fallback(p, sub)
		}
	}
}
