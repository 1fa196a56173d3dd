package http

import (
	"net/http"

	"github.com/abytech-hub/notification-core/internal/application/notification"
	"github.com/abytech-hub/notification-core/internal/application/push"
	"github.com/abytech-hub/notification-core/internal/application/subscription"
	"github.com/abytech-hub/notification-core/internal/config"
	"github.com/abytech-hub/notification-core/internal/domain"
	webpushinfra "github.com/abytech-hub/notification-core/internal/infrastructure/webpush"
	"github.com/abytech-hub/notification-core/internal/transport/http/handler"
	appmiddleware "github.com/abytech-hub/notification-core/internal/transport/http/middleware"
	"github.com/abytech-hub/notification-core/internal/transport/ws"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	SubscriptionRepo SubscriptionRepository
	NotificationRepo NotificationRepository
	// PushSender is nil when no VAPID key pair is configured.
	PushSender  webpushinfra.Sender
	Publisher   EventPublisher
	Hub         *ws.Hub
	JWTProvider appmiddleware.TokenVerifier
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	adminOnly := appmiddleware.RequireRecipientType(domain.RecipientAdmin)

	// 5 requests/second, burst of 10, on registration and fan-out endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10, appmiddleware.WithTrustedProxies(cfg.TrustedProxies...))

	hub := deps.Hub
	if hub == nil {
		hub = ws.NewHub()
	}

	subSvc := subscription.NewService(deps.SubscriptionRepo)
	pushSvc := push.NewService(subSvc, deps.PushSender, cfg.PushWorkers)
	notifDeps := notification.ServiceDeps{
		Repo:      deps.NotificationRepo,
		Emitter:   hub,
		Publisher: deps.Publisher,
	}
	if deps.PushSender != nil {
		notifDeps.Pusher = pushSvc
	}
	notifSvc := notification.NewService(notifDeps)

	healthH := handler.NewHealthHandler(deps.PushSender != nil, hub.Total)
	notifH := handler.NewNotificationHandler(notifSvc)
	pushH := handler.NewPushHandler(subSvc, pushSvc, cfg.VAPIDPublicKey)
	wsH := ws.NewHandler(hub, deps.JWTProvider, cfg.AllowedOrigins)

	r.Route("/v1", func(r chi.Router) {
		// Public routes (no auth)
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Get("/push-notification/vapid-public-key", pushH.VAPIDPublicKey)
		// The websocket authenticates with ?token= since browsers cannot set headers on upgrade.
		r.Get("/ws", wsH.ServeHTTP)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/notifications", notifH.Create)
			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Put("/notifications/mark-all-read", notifH.MarkAllAsRead)
			r.Put("/notifications/{id}/read", notifH.MarkAsRead)

			r.With(sensitiveRL.Limit).Post("/push-notification/subscribe", pushH.Subscribe)
			r.Delete("/push-notification/unsubscribe/device", pushH.UnsubscribeDevice)
			r.Delete("/push-notification/unsubscribe/all", pushH.UnsubscribeAll)
			r.Get("/push-notification/subscriptions/{userId}/{type}", pushH.Subscriptions)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.With(sensitiveRL.Limit).Post("/push-notification/send/user", pushH.SendToUser)
				r.With(sensitiveRL.Limit).Post("/push-notification/send/all", pushH.SendToAll)
				r.Get("/push-notification/count/{type}", pushH.Count)
			})
		})
	})

	return r
}
