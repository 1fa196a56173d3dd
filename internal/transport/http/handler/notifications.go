package handler

import (
	"net/http"
	"strconv"

	"github.com/abytech-hub/notification-core/internal/application/notification"
	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/abytech-hub/notification-core/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// NotificationHandler handles notification endpoints. Every route acts on the
// caller's own inbox as identified by the JWT.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.CreateNotificationRequest
	if !decodeValid(w, r, &req) {
		return
	}
	sender := claims.Recipient()
	n, err := h.svc.Create(r.Context(), &sender, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	page, err := h.svc.List(r.Context(), claims.Recipient(), parseQuery(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseQuery(r *http.Request) domain.NotificationQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return domain.NotificationQuery{Page: page, Limit: limit, Search: q.Get("search")}
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	changed, err := h.svc.MarkAsRead(r.Context(), chi.URLParam(r, "id"), claims.Recipient())
	if err != nil {
		httpError(w, err)
		return
	}
	msg := "Notification marked as read"
	if !changed {
		msg = "Notification already read"
	}
	writeJSON(w, http.StatusOK, ResultEnvelope{Success: true, Message: msg})
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.MarkAllAsRead(r.Context(), claims.Recipient())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultEnvelope{Success: true, Message: "All notifications marked as read", Count: intPtr(n)})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.UnreadCount(r.Context(), claims.Recipient())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountEnvelope{Count: n})
}
