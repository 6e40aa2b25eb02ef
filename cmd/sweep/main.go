package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"catnanny-backend/internal/booking"
	"catnanny-backend/internal/config"
	"catnanny-backend/internal/db"
	"catnanny-backend/internal/notifications"
)

// One-shot deposit sweep for cron. The API exposes the same operation at
// POST /api/admin/check-expired-deposits; this binary exists for hosts
// where an authenticated HTTP call is more hassle than a crontab line.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	brevo := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	var notifier booking.Notifier
	if brevo != nil {
		notifier = notifications.NewMailer(brevo, cfg.AdminNotifyEmail)
	}

	repo := booking.NewRepository(cols.Bookings)
	service := booking.NewService(repo, cfg.Timezone, notifier, nil, logger)

	cancelled, err := service.SweepExpiredDeposits(ctx)
	if err != nil {
		logger.Error("deposit sweep failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("deposit sweep finished", slog.Int("cancelled", len(cancelled)))
	for _, b := range cancelled {
		logger.Info("booking cancelled",
			slog.String("booking_id", b.ID),
			slog.String("email", b.Email),
		)
	}
}
