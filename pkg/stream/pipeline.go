package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/odvcencio/pagecast/pkg/browser"
	"github.com/odvcencio/pagecast/pkg/logging"
)

// Pipeline applies viewer control events to the shared page. Submissions are
// fire-and-forget: each one runs as its own goroutine, but all of them funnel
// through a single mutex so at most one event mutates the page at any
// instant. Mirror pages receive the identical action best-effort; a mirror
// failure never affects the primary outcome.
type Pipeline struct {
	gate sync.Mutex

	primary     browser.Page
	mirrors     []browser.Page
	broadcaster *Broadcaster
	logger      *logging.Logger

	// applied is signalled once per processed submission; tests use it to
	// wait for asynchronous completion.
	applied chan struct{}
}

// NewPipeline creates an event pipeline. primary may be nil, in which case
// every submission is logged as resource-unavailable and dropped.
func NewPipeline(primary browser.Page, mirrors []browser.Page, broadcaster *Broadcaster, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		primary:     primary,
		mirrors:     mirrors,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Submit dispatches an event for application. It never blocks the caller's
// receive loop.
func (p *Pipeline) Submit(ev Event) {
	go p.apply(ev)
}

func (p *Pipeline) apply(ev Event) {
	waitStart := time.Now()
	p.gate.Lock()
	metricGateWait.Observe(time.Since(waitStart).Seconds())
	defer p.gate.Unlock()
	defer p.notifyApplied()

	applyStart := time.Now()
	defer func() { metricApplyDuration.Observe(time.Since(applyStart).Seconds()) }()

	ctx := context.Background()

	if p.primary == nil {
		p.logger.Warn(logging.CategoryPipeline, "event_dropped", "no page available", map[string]any{
			"name": string(ev.Name),
		})
		metricEventFailures.WithLabelValues(string(ev.Name)).Inc()
		return
	}

	viewport, err := p.primary.ViewportSize(ctx)
	if err != nil {
		viewport = browser.DefaultViewport
	}

	if err := applyTo(ctx, p.primary, ev, viewport); err != nil {
		metricEventFailures.WithLabelValues(string(ev.Name)).Inc()
		p.logger.Error(logging.CategoryPipeline, "event_apply_failed", err.Error(), map[string]any{
			"name": string(ev.Name),
		})
		return
	}
	metricEventsApplied.WithLabelValues(string(ev.Name)).Inc()

	for _, mirror := range p.mirrors {
		if mirror == nil {
			continue
		}
		if err := applyTo(ctx, mirror, ev, viewport); err != nil {
			p.logger.Warn(logging.CategoryPipeline, "mirror_apply_failed", err.Error(), map[string]any{
				"name": string(ev.Name),
			})
		}
	}

	// Push a fresh frame immediately instead of waiting for the scheduler's
	// next tick; this is what keeps interactions feeling responsive at a low
	// steady-state frame rate.
	frame, err := p.primary.CaptureFrame(ctx)
	if err != nil {
		p.logger.Warn(logging.CategoryPipeline, "post_event_capture_failed", err.Error(), nil)
		return
	}
	p.broadcaster.BroadcastFrame(frame)
}

// applyTo translates one event into page-level actions.
func applyTo(ctx context.Context, page browser.Page, ev Event, viewport browser.Viewport) error {
	switch ev.Name {
	case EventClick:
		x := int(ev.XRatio * float64(viewport.Width))
		y := int(ev.YRatio * float64(viewport.Height))
		return page.Click(ctx, x, y)

	case EventKey:
		if ev.Key == "" {
			return nil
		}
		if utf8.RuneCountInString(ev.Key) == 1 {
			return page.TypeText(ctx, ev.Key)
		}
		return page.PressKey(ctx, ev.Key)

	case EventNavigate:
		url := strings.TrimSpace(ev.URL)
		if url == "" {
			return nil
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			url = "http://" + url
		}
		return page.Navigate(ctx, url)

	case EventWheel:
		deltaY := ev.DeltaY
		if ev.ClientHeight != 0 {
			// Account for viewer-side DPI/layout mismatch.
			deltaY = ev.DeltaY * (float64(viewport.Height) / ev.ClientHeight)
		}
		return page.ScrollBy(ctx, deltaY)
	}
	return fmt.Errorf("unknown event name %q", ev.Name)
}

func (p *Pipeline) notifyApplied() {
	if p.applied == nil {
		return
	}
	select {
	case p.applied <- struct{}{}:
	default:
	}
}
