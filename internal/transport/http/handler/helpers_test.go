package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
	jwtinfra "github.com/abytech-hub/notification-core/internal/infrastructure/jwt"
	"github.com/abytech-hub/notification-core/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

var (
	adminU1 = domain.Recipient{ID: "u1", Type: domain.RecipientAdmin}
	userU2  = domain.Recipient{ID: "u2", Type: domain.RecipientUser}
)

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour)
}

// bearerReq builds a request with a signed Bearer token for rc.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target string, rc domain.Recipient, body []byte) *http.Request {
	t.Helper()
	token, err := p.Sign(rc)
	require.NoError(t, err)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// withChiParams injects chi URL params (key, value pairs) into the request context.
func withChiParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}
