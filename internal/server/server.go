package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/nudge/internal/config"
	"github.com/dukerupert/nudge/internal/email"
	"github.com/dukerupert/nudge/internal/handler"
	"github.com/dukerupert/nudge/internal/messaging"
	"github.com/dukerupert/nudge/internal/middleware"
	"github.com/dukerupert/nudge/internal/notify"
	"github.com/dukerupert/nudge/internal/preference"
	"github.com/dukerupert/nudge/internal/push"
	"github.com/dukerupert/nudge/internal/scheduler"
	"github.com/dukerupert/nudge/internal/store"
	"github.com/dukerupert/nudge/internal/templates"
	ws "github.com/dukerupert/nudge/internal/websocket"
)

// pushTestLimit caps test notifications per user.
const pushTestLimit = 5

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	notificationH  *handler.NotificationHandler
	pushH          *handler.PushHandler
	preferenceH    *handler.PreferenceHandler
	adminH         *handler.AdminHandler
	sessionStore   *store.SessionStore
	scheduler      *scheduler.Scheduler
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	logger         *slog.Logger
}

// New wires stores, delivery adapters, scanners and handlers. Jobs are
// registered on the scheduler but not started.
func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	notificationStore := store.NewNotificationStore(db)
	pushStore := store.NewPushStore(db)
	prefStore := store.NewPreferenceStore(db)
	ledgerStore := store.NewLedgerStore(db)

	resolver := preference.NewResolver(prefStore, userStore)

	pushSvc := push.NewService(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
		Timeout:         cfg.DeliveryTimeout,
	})

	var emailOpts []email.Option
	if cfg.PostmarkAPIURL != "" {
		emailOpts = append(emailOpts, email.WithAPIURL(cfg.PostmarkAPIURL))
	}
	emailOpts = append(emailOpts, email.WithHTTPClient(&http.Client{Timeout: cfg.DeliveryTimeout}))
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, emailOpts...)

	messagingClient := messaging.NewClient(messaging.Config{
		BaseURL:  cfg.MessagingURL,
		APIKey:   cfg.MessagingAPIKey,
		DeviceID: cfg.MessagingDeviceID,
		Timeout:  cfg.DeliveryTimeout,
	})

	dispatcher := notify.NewDispatcher(notify.Config{
		Notifications:     notificationStore,
		Subscriptions:     pushStore,
		Users:             userStore,
		Policies:          resolver,
		Push:              pushSvc,
		Email:             emailClient,
		Messaging:         messagingClient,
		MessagingDeviceID: messagingClient.DeviceID(),
		Templates:         templates.NewDefault(cfg.DefaultLocale),
		Live:              hub,
		Logger:            logger,
	})

	scanners := notify.NewScanners(dispatcher, notify.Sources{
		Bills:         store.NewBillStore(db),
		Deadlines:     store.NewDeadlineStore(db),
		Goals:         store.NewGoalStore(db),
		Budgets:       store.NewBudgetStore(db),
		Posts:         store.NewPostStore(db),
		Ledger:        ledgerStore,
		Digests:       prefStore,
		Notifications: notificationStore,
	}, logger,
		notify.WithPostLookback(cfg.PostLookback),
		notify.WithLedgerRetention(cfg.LedgerRetention),
	)

	sched := scheduler.New(logger.With("component", "scheduler"))
	jobs, err := scanners.Jobs(cfg.Schedules)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			return nil, err
		}
	}

	if !pushSvc.Configured() {
		logger.Warn("VAPID keys not set; push delivery disabled")
	}
	if !emailClient.Configured() {
		logger.Warn("Postmark not configured; email delivery disabled")
	}
	if !messagingClient.Configured() {
		logger.Warn("messaging gateway not configured; messaging delivery disabled")
	}

	return &Server{
		db:             db,
		hub:            hub,
		notificationH:  handler.NewNotificationHandler(notificationStore, hub, logger.With("component", "notification")),
		pushH:          handler.NewPushHandler(pushStore, cfg.VAPIDPublicKey, dispatcher, logger.With("component", "push_handler")),
		preferenceH:    handler.NewPreferenceHandler(resolver, logger.With("component", "preference")),
		adminH:         handler.NewAdminHandler(sched, logger.With("component", "admin")),
		sessionStore:   sessionStore,
		scheduler:      sched,
		rateLimiter:    middleware.NewRateLimiter(),
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}, nil
}

// Scheduler returns the job scheduler.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the live notification hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc, limit int) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.UserKey, limit, time.Minute)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Notification inbox
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("GET /api/notifications/unread-count", s.notificationH.UnreadCount)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.MarkAllRead)

	// Push subscriptions
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.Handle("POST /api/push/test", s.rateLimitedHandler(s.pushH.TestNotification, pushTestLimit))

	// Preferences
	mux.HandleFunc("GET /api/preferences", s.preferenceH.Get)
	mux.HandleFunc("PATCH /api/preferences", s.preferenceH.Update)

	// Scheduler admin
	mux.Handle("GET /api/admin/jobs", middleware.RequireAdmin(http.HandlerFunc(s.adminH.ListJobs)))
	mux.Handle("POST /api/admin/jobs/{name}/run", middleware.RequireAdmin(http.HandlerFunc(s.adminH.RunJob)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.allowedOrigins, s.logger.With("component", "websocket")))
}
