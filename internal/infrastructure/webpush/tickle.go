package webpushinfra

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// vapidTokenLifetime is the exp of the VAPID JWT; push services reject anything over 24h.
const vapidTokenLifetime = 12 * time.Hour

// tickler sends payload-less pushes (RFC 8030 with RFC 8292 VAPID auth) to endpoints
// that registered without encryption keys.
type tickler struct {
	httpClient *http.Client
	key        *ecdsa.PrivateKey
	publicKey  string
	subject    string
	ttl        int
	now        func() time.Time
}

func newTickler(httpClient *http.Client, publicKey, privateKey, subject string, ttl int) (*tickler, error) {
	key, err := parseVAPIDPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(subject, "https:") && !strings.HasPrefix(subject, "mailto:") {
		subject = "mailto:" + subject
	}
	return &tickler{
		httpClient: httpClient,
		key:        key,
		publicKey:  publicKey,
		subject:    subject,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// parseVAPIDPrivateKey decodes the base64url P-256 scalar produced by webpush.GenerateVAPIDKeys.
func parseVAPIDPrivateKey(s string) (*ecdsa.PrivateKey, error) {
	d, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("decode VAPID private key: %w", err)
	}
	if len(d) != 32 {
		return nil, fmt.Errorf("VAPID private key must be 32 bytes, got %d", len(d))
	}
	curve := elliptic.P256()
	key := &ecdsa.PrivateKey{D: new(big.Int).SetBytes(d)}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(d)
	return key, nil
}

func (t *tickler) authorization(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	claims := jwt.MapClaims{
		"aud": u.Scheme + "://" + u.Host,
		"exp": t.now().Add(vapidTokenLifetime).Unix(),
		"sub": t.subject,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign VAPID token: %w", err)
	}
	return "vapid t=" + signed + ", k=" + t.publicKey, nil
}

func (t *tickler) tickle(ctx context.Context, endpoint string) error {
	auth, err := t.authorization(endpoint)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("TTL", strconv.Itoa(t.ttl))
	req.Header.Set("Urgency", "normal")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}
