package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/abytech-hub/notification-core/internal/config"
	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields. Tokens are issued by the Abytech Hub
// identity service; this service only needs to know who the caller is.
type Claims struct {
	UserID   string               `json:"user_id"`
	UserType domain.RecipientType `json:"user_type"`
	jwt.RegisteredClaims
}

// Recipient is the identity the caller's notifications and devices belong to.
func (c *Claims) Recipient() domain.Recipient {
	return domain.Recipient{ID: c.UserID, Type: c.UserType}
}

func (c *Claims) IsAdmin() bool {
	return c.UserType == domain.RecipientAdmin
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
}

// NewProvider loads the key pair named in cfg. The private key is optional:
// without it the provider can verify but not sign.
func NewProvider(cfg *config.Config) (*Provider, error) {
	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if errors.Is(err, os.ErrNotExist) {
		return NewProviderFromKeys(nil, pubKey, cfg.JWTExpiry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewProviderFromKeys(privKey, pubKey, cfg.JWTExpiry), nil
}

// NewProviderFromKeys builds a provider from parsed keys. priv may be nil.
func NewProviderFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, expiry time.Duration) *Provider {
	return &Provider{privateKey: priv, publicKey: pub, expiry: expiry}
}

func (p *Provider) Sign(r domain.Recipient) (string, error) {
	if p.privateKey == nil {
		return "", errors.New("no private key loaded")
	}
	now := time.Now()
	claims := Claims{
		UserID:   r.ID,
		UserType: r.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   r.Key(),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// Verify parses an RS256 token and requires a recipient identity in it.
// All failures wrap domain.ErrUnauthorized.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return p.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.UserID == "" || !claims.UserType.Valid() {
		return nil, fmt.Errorf("token has no recipient identity: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}
