package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-order-backend/internal/services"
)

// SchedulerConfig controls sweep cadence and the policy knobs each sweep
// applies.
type SchedulerConfig struct {
	// Interval between sweep rounds.
	Interval time.Duration
	// JobTimeout bounds each individual sweep job.
	JobTimeout time.Duration

	// AutoConfirmTimeout is how long an order may stay pending before the
	// lifecycle sweep confirms it.
	AutoConfirmTimeout time.Duration
	// ReprocessLookback bounds how far back the reprocessing sweep looks
	// for stuck order messages.
	ReprocessLookback time.Duration
	// MessageRetention is how long processed non-order chatter is kept.
	MessageRetention time.Duration

	// DailySummaries enables persisting a summary snapshot for the
	// previous day once per calendar day.
	DailySummaries bool
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.AutoConfirmTimeout <= 0 {
		c.AutoConfirmTimeout = 24 * time.Hour
	}
	if c.ReprocessLookback <= 0 {
		c.ReprocessLookback = 24 * time.Hour
	}
	if c.MessageRetention <= 0 {
		c.MessageRetention = 30 * 24 * time.Hour
	}
	return c
}

// Scheduler drives the periodic sweeps: auto-confirming stale orders,
// reprocessing stuck messages, cleaning up old chatter, and optionally
// snapshotting daily summaries.
type Scheduler struct {
	cfg       SchedulerConfig
	log       zerolog.Logger
	ingest    *services.IngestService
	orders    *services.OrderService
	summaries *services.SummaryService

	lastSummaryDay string
}

// NewScheduler constructs a Scheduler. summaries may be nil when daily
// snapshots are disabled.
func NewScheduler(cfg SchedulerConfig, log zerolog.Logger, ingest *services.IngestService, orders *services.OrderService, summaries *services.SummaryService) *Scheduler {
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		log:       log.With().Str("component", "scheduler").Logger(),
		ingest:    ingest,
		orders:    orders,
		summaries: summaries,
	}
}

// RunOnce executes one round of every sweep. Individual job failures are
// joined and returned; one failing sweep never blocks the others.
func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(ctx context.Context) error
	}{
		{"auto_confirm", func(ctx context.Context) error {
			_, err := s.orders.AutoConfirmStale(ctx, s.cfg.AutoConfirmTimeout)
			return err
		}},
		{"reprocess_failed", func(ctx context.Context) error {
			_, err := s.ingest.ReprocessFailed(ctx, s.cfg.ReprocessLookback)
			return err
		}},
		{"cleanup_messages", func(ctx context.Context) error {
			_, err := s.ingest.CleanupStaleMessages(ctx, s.cfg.MessageRetention)
			return err
		}},
	}

	var err error
	for _, job := range jobs {
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	if s.cfg.DailySummaries && s.summaries != nil {
		err = errors.Join(err, s.runJob(parent, "daily_summary", s.snapshotPreviousDay))
	}
	return err
}

// RunForever loops RunOnce on the configured interval until ctx is done.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn().Err(err).Msg("sweep round had failures")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		s.log.Error().Str("job", name).Dur("took", time.Since(start)).Err(err).Msg("sweep job failed")
		return err
	}
	s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("sweep job done")
	return nil
}

// snapshotPreviousDay persists yesterday's summary once per calendar day.
func (s *Scheduler) snapshotPreviousDay(ctx context.Context) error {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	day := yesterday.Format("2006-01-02")
	if day == s.lastSummaryDay {
		return nil
	}
	if _, _, err := s.summaries.SaveDaily(ctx, yesterday, ""); err != nil {
		return err
	}
	s.lastSummaryDay = day
	return nil
}
