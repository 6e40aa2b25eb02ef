package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catnanny-backend/internal/admin"
	"catnanny-backend/internal/auth"
	"catnanny-backend/internal/booking"
	"catnanny-backend/internal/cache"
	"catnanny-backend/internal/config"
	"catnanny-backend/internal/db"
	"catnanny-backend/internal/message"
	"catnanny-backend/internal/middleware"
	"catnanny-backend/internal/notifications"
	"catnanny-backend/internal/payments"
	"catnanny-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	} else {
		logger.Info("redis not configured, using in-memory cache")
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "catnanny-backend",
		}
	}

	brevo := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	if brevo == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}
	mailer := notifications.NewMailer(brevo, cfg.AdminNotifyEmail)

	stripeProvider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.PublicBaseURL)
	if stripeProvider == nil {
		logger.Info("stripe payments disabled")
	} else {
		logger.Info("stripe payments enabled")
	}

	val := validation.New()
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	var bookingNotifier booking.Notifier
	var messageNotifier message.Notifier
	if brevo != nil {
		bookingNotifier = mailer
		messageNotifier = mailer
	}

	bookingRepo := booking.NewRepository(cols.Bookings)
	var checkout booking.CheckoutProvider
	if stripeProvider != nil {
		checkout = stripeProvider
	}
	bookingService := booking.NewService(bookingRepo, cfg.Timezone, bookingNotifier, checkout, logger)
	bookingHandler := booking.NewHandler(bookingService, val, logger, cacheStore, cacheTTL)

	messageRepo := message.NewRepository(cols.Messages)
	messageService := message.NewService(messageRepo, messageNotifier, logger)
	messageHandler := message.NewHandler(messageService, val, logger)

	paymentHandler := payments.NewHandler(bookingService, cfg.StripeWebhookSecret, logger)
	adminHandler := admin.NewHandler(cfg, jwtManager, bookingService, messageService, val, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	bookingLimiter := middleware.NewRateLimiter(cfg.RateLimitBooking, window, cacheStore)
	contactLimiter := middleware.NewRateLimiter(cfg.RateLimitContact, window, cacheStore)
	paymentLimiter := middleware.NewRateLimiter(cfg.RateLimitPayment, window, cacheStore)

	adminOnly := middleware.AdminAuth(cfg.AdminAPIKey, jwtManager)

	registerRoutes := func(api chi.Router) {
		api.With(bookingLimiter.Middleware).Post("/bookings", bookingHandler.Create)
		api.Get("/bookings", bookingHandler.Calendar)
		api.Get("/bookings/{id}", bookingHandler.Get)
		api.With(adminOnly).Patch("/bookings/{id}", bookingHandler.AdminUpdate)
		api.With(adminOnly).Delete("/bookings/{id}", bookingHandler.AdminDelete)

		// /contact is the original form endpoint, /messages the newer alias.
		api.With(contactLimiter.Middleware).Post("/contact", messageHandler.Create)
		api.With(contactLimiter.Middleware).Post("/messages", messageHandler.Create)
		api.With(adminOnly).Get("/messages", messageHandler.AdminList)
		api.With(adminOnly).Patch("/messages/{id}", messageHandler.MarkRead)
		api.With(adminOnly).Delete("/messages/{id}", messageHandler.AdminDelete)

		api.With(paymentLimiter.Middleware).Post("/payments/deposit", paymentHandler.CreateDeposit)
		api.Post("/webhooks/payment", paymentHandler.Webhook)

		api.Route("/admin", func(ar chi.Router) {
			ar.Post("/login", adminHandler.Login)
			ar.Post("/refresh", adminHandler.Refresh)
			ar.Post("/logout", adminHandler.Logout)

			// chi requires middleware before routes; the protected surface
			// lives on its own sub-router.
			ar.Group(func(protected chi.Router) {
				protected.Use(adminOnly)
				protected.Get("/bookings", bookingHandler.AdminList)

				protected.Get("/check-expired-deposits", bookingHandler.ListExpired)
				protected.Post("/check-expired-deposits", bookingHandler.SweepExpired)

				protected.Get("/stats", adminHandler.Stats)
				protected.Get("/recent-activity", adminHandler.RecentActivity)
			})
		})
	}

	// Both prefixes are live: /api/... (legacy frontend) and /api/v1/... .
	r.Route("/api", registerRoutes)
	r.Route("/api/v1", registerRoutes)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
