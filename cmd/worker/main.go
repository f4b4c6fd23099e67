package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"pulse/internal/config"
	"pulse/internal/domain/notification"
	"pulse/internal/infra/email"
	"pulse/internal/infra/queue"
	"pulse/internal/infra/store"
	"pulse/internal/infra/telegram"
)

// queueEnqueuer adapts the asynq client to the notification.Enqueuer
// interface. Used by the reaper to re-enqueue lost deliveries.
type queueEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func (q *queueEnqueuer) EnqueueDelivery(notificationID string, ch notification.Channel, recipientID int64) error {
	return queue.EnqueueDelivery(q.client, notificationID, ch, recipientID, q.maxRetry)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("worker configuration loaded")

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	supaStore, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize supabase store", "error", err)
		os.Exit(1)
	}
	slog.Info("supabase store initialized")

	// Channel senders. A sender that cannot be constructed is skipped: its
	// deliveries become logged no-ops instead of crash loops.
	var senders []notification.Sender

	if cfg.Email.APIKey != "" {
		senders = append(senders, email.NewResendSender(
			cfg.Email.APIKey,
			cfg.Email.FromAddress,
			cfg.Email.FromName,
		))
		slog.Info("email sender initialized", "from", cfg.Email.FromAddress)
	} else {
		slog.Warn("email API key not configured, email deliveries will be skipped")
	}

	if cfg.Telegram.BotToken != "" {
		tgSender, err := telegram.NewBotSender(cfg.Telegram.BotToken)
		if err != nil {
			slog.Error("failed to initialize telegram sender", "error", err)
			os.Exit(1)
		}
		senders = append(senders, tgSender)
		slog.Info("telegram sender initialized")
	} else {
		slog.Warn("telegram bot token not configured, telegram deliveries will be skipped")
	}

	deliverer := notification.NewDeliverer(supaStore, supaStore, supaStore, senders...)

	// Asynq client for the reaper's re-enqueues
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()

	enqueuer := &queueEnqueuer{
		client:   asynqClient,
		maxRetry: cfg.Queue.MaxRetry,
	}

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDeliver, func(ctx context.Context, task *asynq.Task) error {
		payload, err := notification.ParseDeliverPayload(task.Payload())
		if err != nil {
			return err
		}
		return deliverer.ProcessTask(ctx, payload)
	})

	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Stale Notification Reaper
	// ==========================================

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	reaper := notification.NewReaper(supaStore, enqueuer, notification.ReaperConfig{
		Interval:       time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		StaleThreshold: time.Duration(cfg.Reaper.StaleThresholdSec) * time.Second,
		BatchSize:      cfg.Reaper.BatchSize,
	})
	go reaper.Run(reaperCtx)

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	reaperCancel() // Stop the reaper first
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
