package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "PUSH_WORKERS", "ALLOWED_ORIGINS", "JWT_EXPIRY_HOURS", "TRUSTED_PROXIES"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, 4, cfg.PushWorkers)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "notification_inbox", cfg.DynamoTables.Inbox)
	assert.False(t, cfg.PushEnabled())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PUSH_WORKERS", "8")
	t.Setenv("PUSH_TTL_SECONDS", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, ,172.16.0.1")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8, cfg.PushWorkers)
	assert.Equal(t, 24*60*60, cfg.PushTTL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.PushEnabled())
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.1"}, cfg.TrustedProxies)
}
