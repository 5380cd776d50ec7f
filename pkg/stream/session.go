package stream

import (
	"context"
	"sync"
	"time"

	"github.com/odvcencio/pagecast/pkg/browser"
	"github.com/odvcencio/pagecast/pkg/logging"
)

// SessionConfig configures page acquisition and capture pacing.
type SessionConfig struct {
	InitialURL    string
	Viewport      browser.Viewport
	JPEGQuality   int
	CaptureFPS    int
	IdlePoll      time.Duration
	RetryInterval time.Duration
}

// Session owns the shared browser pages and the capture scheduler for one
// streaming session. The primary runtime renders the frames viewers see; an
// optional mirror runtime gives operators a visible window kept in
// best-effort sync.
type Session struct {
	primaryRT   browser.Runtime
	mirrorRT    browser.Runtime
	registry    *Registry
	broadcaster *Broadcaster
	cfg         SessionConfig
	logger      *logging.Logger

	mu       sync.Mutex
	started  bool
	primary  browser.Page
	mirror   browser.Page
	pipeline *Pipeline
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSession creates a session. mirrorRT may be nil.
func NewSession(primaryRT, mirrorRT browser.Runtime, registry *Registry, broadcaster *Broadcaster, cfg SessionConfig, logger *logging.Logger) *Session {
	return &Session{
		primaryRT:   primaryRT,
		mirrorRT:    mirrorRT,
		registry:    registry,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
	}
}

// Start acquires the pages and launches the capture scheduler. A primary
// acquisition failure is not fatal: the server keeps running with streaming
// disabled and the pipeline reports every event as unavailable.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	pageCfg := browser.PageConfig{
		Viewport:    s.cfg.Viewport,
		InitialURL:  s.cfg.InitialURL,
		JPEGQuality: s.cfg.JPEGQuality,
	}
	if pageCfg.Viewport.Width <= 0 || pageCfg.Viewport.Height <= 0 {
		pageCfg.Viewport = browser.DefaultViewport
	}

	if s.primaryRT != nil {
		page, err := s.primaryRT.NewPage(ctx, pageCfg)
		if err != nil {
			s.logger.Error(logging.CategorySession, "primary_acquire_failed", err.Error(), nil)
		} else {
			s.primary = page
			s.logger.Info(logging.CategorySession, "primary_acquired", "headless page ready", map[string]any{
				"url": s.cfg.InitialURL,
			})
		}
	}

	if s.mirrorRT != nil {
		page, err := s.mirrorRT.NewPage(ctx, pageCfg)
		if err != nil {
			// The mirror is operator convenience only.
			s.logger.Warn(logging.CategorySession, "mirror_acquire_failed", err.Error(), nil)
		} else {
			s.mirror = page
			s.logger.Info(logging.CategorySession, "mirror_acquired", "visible page ready", nil)
		}
	}

	var mirrors []browser.Page
	if s.mirror != nil {
		mirrors = append(mirrors, s.mirror)
	}
	s.pipeline = NewPipeline(s.primary, mirrors, s.broadcaster, s.logger)

	if s.primary == nil {
		s.logger.Warn(logging.CategorySession, "streaming_disabled", "no primary page; capture loop not started", nil)
		return nil
	}

	fps := s.cfg.CaptureFPS
	if fps <= 0 {
		fps = 5
	}
	scheduler := NewScheduler(s.primary, s.registry, s.broadcaster, SchedulerConfig{
		FrameInterval: time.Second / time.Duration(fps),
		IdlePoll:      s.cfg.IdlePoll,
		RetryInterval: s.cfg.RetryInterval,
	}, s.logger)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		scheduler.Run(runCtx)
	}()
	return nil
}

// Stop cancels the capture scheduler and releases every acquired resource.
// It is idempotent and safe to call on a session that never started;
// individual release failures are logged and do not abort the rest.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}

	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			s.logger.Warn(logging.CategorySession, "primary_release_failed", err.Error(), nil)
		}
		s.primary = nil
	}
	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			s.logger.Warn(logging.CategorySession, "mirror_release_failed", err.Error(), nil)
		}
		s.mirror = nil
	}
	if s.primaryRT != nil {
		if err := s.primaryRT.Close(); err != nil {
			s.logger.Warn(logging.CategorySession, "primary_runtime_release_failed", err.Error(), nil)
		}
	}
	if s.mirrorRT != nil {
		if err := s.mirrorRT.Close(); err != nil {
			s.logger.Warn(logging.CategorySession, "mirror_runtime_release_failed", err.Error(), nil)
		}
	}
	s.started = false
	s.logger.Info(logging.CategorySession, "session_stopped", "resources released", nil)
}

// Pipeline returns the event pipeline, available after Start.
func (s *Session) Pipeline() *Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline
}

// Meta reports the connect-time metadata: the current viewport and URL, with
// the configured fallbacks when the page is unavailable.
func (s *Session) Meta(ctx context.Context) (browser.Viewport, string) {
	s.mu.Lock()
	page := s.primary
	s.mu.Unlock()

	if page == nil {
		return browser.DefaultViewport, ""
	}
	viewport, err := page.ViewportSize(ctx)
	if err != nil {
		viewport = browser.DefaultViewport
	}
	url, err := page.CurrentURL(ctx)
	if err != nil {
		url = ""
	}
	return viewport, url
}
