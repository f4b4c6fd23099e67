package notification

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the stale notification reaper.
type ReaperConfig struct {
	// Interval is how often the reaper scans for stale notifications.
	Interval time.Duration

	// StaleThreshold is how long a notification can stay pending before the
	// reaper assumes its delivery tasks were lost and re-enqueues them.
	StaleThreshold time.Duration

	// BatchSize is the maximum number of stale notifications per cycle.
	BatchSize int
}

// Reaper periodically scans the store for notifications stuck in pending
// and re-enqueues their channel deliveries. The database is the source of
// truth; the reaper reconciles it with the queue on a timer, so a wiped
// Redis or a crashed worker never loses a notification for good. Workers
// are idempotent on resend.
type Reaper struct {
	store    NotificationStore
	enqueuer Enqueuer
	config   ReaperConfig
}

// NewReaper creates a new stale notification reaper.
func NewReaper(store NotificationStore, enqueuer Enqueuer, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reaper{
		store:    store,
		enqueuer: enqueuer,
		config:   cfg,
	}
}

// Run starts the reaper loop. It blocks until the context is cancelled.
// Should be called in a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("reaper started",
		"interval", r.config.Interval,
		"stale_threshold", r.config.StaleThreshold,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reaper cycle: find stale pending notifications and
// re-enqueue a delivery task per recorded channel.
func (r *Reaper) Sweep(ctx context.Context) {
	olderThan := time.Now().Add(-r.config.StaleThreshold)

	stale, err := r.store.ListStalePending(ctx, olderThan, r.config.BatchSize)
	if err != nil {
		slog.Error("reaper: failed to list stale notifications", "error", err)
		return
	}
	if len(stale) == 0 {
		return // Nothing to do — the common case
	}

	slog.Warn("reaper: found stale notifications", "count", len(stale))

	recovered := 0
	for _, n := range stale {
		if len(n.Channels) == 0 {
			// Every requested channel was suppressed at creation; there is
			// nothing to deliver and the row stays pending until read.
			continue
		}
		ok := true
		for _, ch := range n.Channels {
			if err := r.enqueuer.EnqueueDelivery(n.ID, ch, n.RecipientID); err != nil {
				slog.Error("reaper: failed to re-enqueue delivery",
					"notification_id", n.ID,
					"channel", ch,
					"error", err,
				)
				ok = false
			}
		}
		if !ok {
			continue
		}
		recovered++
		slog.Info("reaper: recovered stale notification",
			"notification_id", n.ID,
			"channels", n.Channels,
			"age", time.Since(n.CreatedAt).Round(time.Second),
		)
	}

	if recovered > 0 {
		slog.Info("reaper: sweep complete", "recovered", recovered, "total_stale", len(stale))
	}
}
