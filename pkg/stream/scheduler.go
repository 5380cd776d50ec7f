package stream

import (
	"context"
	"time"

	"github.com/odvcencio/pagecast/pkg/browser"
	"github.com/odvcencio/pagecast/pkg/logging"
)

// SchedulerConfig tunes the capture loop intervals.
type SchedulerConfig struct {
	// FrameInterval is the steady-state delay between captures (1/targetFPS).
	FrameInterval time.Duration
	// IdlePoll is how often the loop re-checks for viewers while none are
	// connected.
	IdlePoll time.Duration
	// RetryInterval is the backoff applied when the page cannot be captured.
	RetryInterval time.Duration
}

// Scheduler is the fixed-rate capture loop. It captures nothing while the
// registry is empty, backs off while the page is unavailable, and otherwise
// captures and broadcasts at the configured rate. Capture cost is nontrivial,
// so the loop never runs faster than the target rate.
type Scheduler struct {
	page        browser.Page
	registry    *Registry
	broadcaster *Broadcaster
	cfg         SchedulerConfig
	logger      *logging.Logger
}

// NewScheduler creates a capture scheduler for the given page.
func NewScheduler(page browser.Page, registry *Registry, broadcaster *Broadcaster, cfg SchedulerConfig, logger *logging.Logger) *Scheduler {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 200 * time.Millisecond
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = 500 * time.Millisecond
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	return &Scheduler{
		page:        page,
		registry:    registry,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run executes the capture loop until ctx is cancelled. Cancellation
// interrupts any in-progress sleep promptly; an in-progress capture is
// allowed to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info(logging.CategoryCapture, "scheduler_started", "capture loop running", map[string]any{
		"frame_interval": s.cfg.FrameInterval.String(),
	})
	defer s.logger.Info(logging.CategoryCapture, "scheduler_stopped", "capture loop stopped", nil)

	for {
		if ctx.Err() != nil {
			return
		}
		if s.registry.Len() == 0 {
			if !sleepCtx(ctx, s.cfg.IdlePoll) {
				return
			}
			continue
		}

		frame, err := s.page.CaptureFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metricCaptureFailures.Inc()
			s.logger.Warn(logging.CategoryCapture, "capture_failed", err.Error(), nil)
			if !sleepCtx(ctx, s.cfg.RetryInterval) {
				return
			}
			continue
		}
		metricCaptures.Inc()
		s.broadcaster.BroadcastFrame(frame)

		if !sleepCtx(ctx, s.cfg.FrameInterval) {
			return
		}
	}
}

// sleepCtx waits for d, returning false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
