package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"structured-persistent-logger/config"
	"structured-persistent-logger/fields"
)

// UptimeField is refreshed on every heartbeat.
const UptimeField = "uptime_seconds"

// Heartbeat updates the uptime field and emits a heartbeat record.
type Heartbeat struct {
	store   *fields.Store
	started time.Time
	now     func() time.Time
}

func NewHeartbeat(store *fields.Store) *Heartbeat {
	return &Heartbeat{
		store:   store,
		started: time.Now(),
		now:     time.Now,
	}
}

func (h *Heartbeat) Beat(ctx context.Context) {
	uptime := int64(h.now().Sub(h.started).Seconds())
	h.store.Set(UptimeField, uptime)
	slog.InfoContext(ctx, "heartbeat")
}

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, heartbeat *Heartbeat) *cron.Cron {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	schedule := cfg.Heartbeat.Schedule
	_, err := c.AddFunc(schedule, func() {
		heartbeat.Beat(context.Background())
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", schedule).Msg("Failed to add cron job")
		return nil
	}
	slog.Info("Scheduled heartbeat job", "schedule", schedule)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			slog.Info("Starting cron scheduler")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			slog.Info("Stopping cron scheduler...")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
				slog.Info("Cron scheduler stopped gracefully.")
				return nil
			case <-ctx.Done():
				slog.Error("Context cancelled while waiting for cron scheduler to stop.")
				return ctx.Err()
			}
		},
	})

	return c
}
