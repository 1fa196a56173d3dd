package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abytech-hub/notification-core/internal/config"
	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeys(t *testing.T, withPrivate bool) (*config.Config, *rsa.PrivateKey) {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := &config.Config{
		JWTPrivateKeyPath: filepath.Join(dir, "private.pem"),
		JWTPublicKeyPath:  filepath.Join(dir, "public.pem"),
		JWTExpiry:         time.Hour,
	}
	if withPrivate {
		privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
		require.NoError(t, os.WriteFile(cfg.JWTPrivateKeyPath, privPEM, 0600))
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(cfg.JWTPublicKeyPath, pubPEM, 0600))
	return cfg, privKey
}

func TestProvider_SignVerifyRoundTrip(t *testing.T) {
	cfg, _ := writeKeys(t, true)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	tok, err := p.Sign(domain.Recipient{ID: "u1", Type: domain.RecipientAdmin})
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.Recipient{ID: "u1", Type: domain.RecipientAdmin}, claims.Recipient())
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "ADMIN#u1", claims.Subject)
}

func TestProvider_VerifyOnly(t *testing.T) {
	cfg, _ := writeKeys(t, false)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	_, err = p.Sign(domain.Recipient{ID: "u1", Type: domain.RecipientUser})
	assert.Error(t, err)
}

func TestProvider_RejectsMissingIdentity(t *testing.T) {
	cfg, priv := writeKeys(t, false)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		UserID:   "u1",
		UserType: "GUEST",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(priv)
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.ErrorContains(t, err, "recipient identity")
}

func TestProvider_RejectsExpired(t *testing.T) {
	cfg, priv := writeKeys(t, false)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		UserID:   "u1",
		UserType: domain.RecipientUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString(priv)
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestProvider_RejectsOtherAlgorithms(t *testing.T) {
	cfg, _ := writeKeys(t, false)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	claims := &Claims{
		UserID:   "u1",
		UserType: domain.RecipientUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProvider_RequiresExpiry(t *testing.T) {
	cfg, priv := writeKeys(t, false)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		UserID:   "u1",
		UserType: domain.RecipientUser,
	}).SignedString(priv)
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
