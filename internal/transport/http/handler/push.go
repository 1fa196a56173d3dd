package handler

import (
	"fmt"
	"net/http"

	"github.com/abytech-hub/notification-core/internal/application/push"
	"github.com/abytech-hub/notification-core/internal/application/subscription"
	"github.com/abytech-hub/notification-core/internal/domain"
	jwtinfra "github.com/abytech-hub/notification-core/internal/infrastructure/jwt"
	"github.com/abytech-hub/notification-core/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// PushHandler handles the device subscription registry and push fan-out endpoints.
type PushHandler struct {
	subs           subscription.Service
	push           push.Service
	vapidPublicKey string
}

func NewPushHandler(subs subscription.Service, pushSvc push.Service, vapidPublicKey string) *PushHandler {
	return &PushHandler{subs: subs, push: pushSvc, vapidPublicKey: vapidPublicKey}
}

// canManage reports whether the caller may act on owner's devices.
func canManage(claims *jwtinfra.Claims, owner domain.Recipient) bool {
	return claims.IsAdmin() || claims.Recipient() == owner
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.SubscribeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if !canManage(claims, req.Owner()) {
		writeError(w, http.StatusForbidden, "cannot manage another recipient's devices")
		return
	}
	sub, err := h.subs.Subscribe(r.Context(), req, r.UserAgent())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ResultEnvelope{Success: true, Message: "Subscribed to push notifications", Data: sub})
}

func (h *PushHandler) UnsubscribeDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UnsubscribeDeviceRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if !canManage(claims, req.Owner()) {
		writeError(w, http.StatusForbidden, "cannot manage another recipient's devices")
		return
	}
	removed, err := h.subs.UnsubscribeDevice(r.Context(), req.Owner(), req.Endpoint)
	if err != nil {
		httpError(w, err)
		return
	}
	msg := "Device unsubscribed"
	if !removed {
		msg = "Device was not subscribed"
	}
	writeJSON(w, http.StatusOK, ResultEnvelope{Success: true, Message: msg})
}

func (h *PushHandler) UnsubscribeAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UnsubscribeAllRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if !canManage(claims, req.Owner()) {
		writeError(w, http.StatusForbidden, "cannot manage another recipient's devices")
		return
	}
	n, err := h.subs.UnsubscribeAll(r.Context(), req.Owner())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultEnvelope{
		Success: true,
		Message: fmt.Sprintf("Unsubscribed %d device(s)", n),
		Count:   intPtr(n),
	})
}

func (h *PushHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	t, err := domain.ParseRecipientType(chi.URLParam(r, "type"))
	if err != nil {
		httpError(w, err)
		return
	}
	owner := domain.Recipient{ID: chi.URLParam(r, "userId"), Type: t}
	if !canManage(claims, owner) {
		writeError(w, http.StatusForbidden, "cannot view another recipient's devices")
		return
	}
	subs, err := h.subs.List(r.Context(), owner)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *PushHandler) SendToUser(w http.ResponseWriter, r *http.Request) {
	var req domain.SendToUserRequest
	if !decodeValid(w, r, &req) {
		return
	}
	report, err := h.push.SendToUser(r.Context(), domain.Recipient{ID: req.UserID, Type: req.Type}, req.Payload)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PushHandler) SendToAll(w http.ResponseWriter, r *http.Request) {
	var req domain.SendToAllRequest
	if !decodeValid(w, r, &req) {
		return
	}
	report, err := h.push.SendToAll(r.Context(), req.Type, req.Payload)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PushHandler) Count(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseRecipientType(chi.URLParam(r, "type"))
	if err != nil {
		httpError(w, err)
		return
	}
	n, err := h.subs.CountByType(r.Context(), t)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountEnvelope{Count: n})
}

func (h *PushHandler) VAPIDPublicKey(w http.ResponseWriter, _ *http.Request) {
	if h.vapidPublicKey == "" {
		httpError(w, domain.ErrPushDisabled)
		return
	}
	writeJSON(w, http.StatusOK, VAPIDKeyEnvelope{PublicKey: h.vapidPublicKey})
}
