package domain

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

// ContentEncoding is the payload encryption scheme a push endpoint expects.
type ContentEncoding string

const (
	EncodingAES128GCM ContentEncoding = "aes128gcm"
	EncodingAESGCM    ContentEncoding = "aesgcm"
)

func (e ContentEncoding) Valid() bool {
	return e == EncodingAES128GCM || e == EncodingAESGCM
}

// DeviceSubscription is one registered browser push endpoint.
// PK: owner_key ("TYPE#id"), SK: endpoint.
type DeviceSubscription struct {
	SubscriptionID  string          `json:"id" dynamodbav:"subscription_id"`
	OwnerKey        string          `json:"-" dynamodbav:"owner_key"`
	UserID          string          `json:"userId" dynamodbav:"user_id"`
	UserType        RecipientType   `json:"type" dynamodbav:"user_type"`
	Endpoint        string          `json:"endpoint" dynamodbav:"endpoint"`
	P256dh          *string         `json:"p256dh" dynamodbav:"p256dh"`
	Auth            *string         `json:"auth" dynamodbav:"auth"`
	ContentEncoding ContentEncoding `json:"contentEncoding" dynamodbav:"content_encoding"`
	Label           string          `json:"label" dynamodbav:"label"`
	UserAgent       string          `json:"userAgent,omitempty" dynamodbav:"user_agent,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" dynamodbav:"updated_at"`
}

func (s *DeviceSubscription) Owner() Recipient {
	return Recipient{ID: s.UserID, Type: s.UserType}
}

// HasKeys reports whether payloads can be encrypted for this endpoint.
func (s *DeviceSubscription) HasKeys() bool {
	return s.P256dh != nil && *s.P256dh != "" && s.Auth != nil && *s.Auth != ""
}

func (s *DeviceSubscription) ToWebPush() *webpush.Subscription {
	ws := &webpush.Subscription{Endpoint: s.Endpoint}
	if s.HasKeys() {
		ws.Keys = webpush.Keys{P256dh: *s.P256dh, Auth: *s.Auth}
	}
	return ws
}

// PushKeys are the client's ECDH public key and auth secret, base64url encoded.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscriptionJSON mirrors the browser's PushSubscription.toJSON() plus the encoding the client inferred.
type PushSubscriptionJSON struct {
	Endpoint        string          `json:"endpoint" validate:"required,url"`
	ExpirationTime  *int64          `json:"expirationTime,omitempty"`
	Keys            *PushKeys       `json:"keys,omitempty"`
	ContentEncoding ContentEncoding `json:"contentEncoding,omitempty" validate:"omitempty,oneof=aes128gcm aesgcm"`
}

func (p PushSubscriptionJSON) FromWebPush(ws *webpush.Subscription) PushSubscriptionJSON {
	p.Endpoint = ws.Endpoint
	if ws.Keys.P256dh != "" || ws.Keys.Auth != "" {
		p.Keys = &PushKeys{P256dh: ws.Keys.P256dh, Auth: ws.Keys.Auth}
	}
	return p
}

type SubscribeRequest struct {
	UserID       string               `json:"userId" validate:"required"`
	Type         RecipientType        `json:"type" validate:"required,oneof=ADMIN USER"`
	Subscription PushSubscriptionJSON `json:"subscription"`
	Label        string               `json:"label" validate:"max=120"`
}

func (r SubscribeRequest) Owner() Recipient { return Recipient{ID: r.UserID, Type: r.Type} }

type UnsubscribeDeviceRequest struct {
	UserID   string        `json:"userId" validate:"required"`
	Type     RecipientType `json:"type" validate:"required,oneof=ADMIN USER"`
	Endpoint string        `json:"endpoint" validate:"required"`
}

func (r UnsubscribeDeviceRequest) Owner() Recipient { return Recipient{ID: r.UserID, Type: r.Type} }

type UnsubscribeAllRequest struct {
	UserID string        `json:"userId" validate:"required"`
	Type   RecipientType `json:"type" validate:"required,oneof=ADMIN USER"`
}

func (r UnsubscribeAllRequest) Owner() Recipient { return Recipient{ID: r.UserID, Type: r.Type} }

// PushPayload is the JSON body the service worker expects in a push event.
type PushPayload struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"max=4000"`
	Icon  string `json:"icon,omitempty"`
	URL   string `json:"url,omitempty"`
}

type SendToUserRequest struct {
	UserID  string        `json:"userId" validate:"required"`
	Type    RecipientType `json:"type" validate:"required,oneof=ADMIN USER"`
	Payload PushPayload   `json:"payload"`
}

type SendToAllRequest struct {
	Type    RecipientType `json:"type" validate:"required,oneof=ADMIN USER"`
	Payload PushPayload   `json:"payload"`
}

// SendReport summarises one fan-out.
type SendReport struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Pruned int `json:"pruned"`
}
