package cdp

import (
	"context"
	"sync"
	"time"

	"github.com/odvcencio/pagecast/pkg/browser"
	"github.com/odvcencio/pagecast/pkg/logging"
)

// Runtime launches and owns one Chromium-family process reached over the
// DevTools protocol. Pages are independent targets attached as flat sessions
// on the shared browser connection.
type Runtime struct {
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	launched *launchedBrowser
	client   *client
	closed   bool
}

// NewRuntime validates the configuration but does not start the browser;
// the process is launched lazily on the first NewPage call.
func NewRuntime(cfg Config, logger *logging.Logger) (*Runtime, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runtime{cfg: cfg, logger: logger}, nil
}

func (r *Runtime) ensureConnected(ctx context.Context) (*client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, browser.ErrUnavailable
	}
	if r.client != nil {
		return r.client, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ConnectTimeout)
	defer cancel()

	lb, err := launchBrowser(ctx, r.cfg)
	if err != nil {
		return nil, err
	}
	r.logger.Info(logging.CategoryBrowser, "browser_started", "browser process started", map[string]any{
		"path":     lb.cmd.Path,
		"headless": r.cfg.Headless,
	})

	cl, err := dialClient(ctx, lb.wsURL)
	if err != nil {
		lb.shutdown()
		return nil, err
	}
	r.launched = lb
	r.client = cl
	return cl, nil
}

type createTargetParams struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type createTargetResult struct {
	TargetID string `json:"targetId"`
}

type attachToTargetParams struct {
	TargetID string `json:"targetId"`
	Flatten  bool   `json:"flatten"`
}

type attachToTargetResult struct {
	SessionID string `json:"sessionId"`
}

type deviceMetricsParams struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor"`
	Mobile            bool    `json:"mobile"`
}

// NewPage creates a fresh target sized to the requested viewport and
// navigated to the initial URL.
func (r *Runtime) NewPage(ctx context.Context, cfg browser.PageConfig) (browser.Page, error) {
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		cfg.Viewport = browser.DefaultViewport
	}
	cl, err := r.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	var created createTargetResult
	createParams := createTargetParams{URL: "about:blank", Width: cfg.Viewport.Width, Height: cfg.Viewport.Height}
	if err := cl.call(callCtx, "", "Target.createTarget", createParams, &created); err != nil {
		return nil, err
	}

	var attached attachToTargetResult
	attachParams := attachToTargetParams{TargetID: created.TargetID, Flatten: true}
	if err := cl.call(callCtx, "", "Target.attachToTarget", attachParams, &attached); err != nil {
		return nil, err
	}

	p := &page{
		client:    cl,
		sessionID: attached.SessionID,
		targetID:  created.TargetID,
		cfg:       cfg,
		opTimeout: r.cfg.OperationTimeout,
	}

	metrics := deviceMetricsParams{
		Width:             cfg.Viewport.Width,
		Height:            cfg.Viewport.Height,
		DeviceScaleFactor: 1,
	}
	if err := cl.call(callCtx, attached.SessionID, "Emulation.setDeviceMetricsOverride", metrics, nil); err != nil {
		r.logger.Warn(logging.CategoryBrowser, "viewport_override_failed", "viewport override failed", map[string]any{"error": err.Error()})
	}

	if cfg.InitialURL != "" {
		if err := p.Navigate(ctx, cfg.InitialURL); err != nil {
			r.logger.Warn(logging.CategoryBrowser, "initial_navigation_failed", "initial navigation failed", map[string]any{
				"url":   cfg.InitialURL,
				"error": err.Error(),
			})
		}
	}
	return p, nil
}

// Close tears down the browser process. A graceful Browser.close is attempted
// first; the process is killed if it does not exit promptly.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.client.call(ctx, "", "Browser.close", nil, nil); err == nil {
		select {
		case <-r.launched.waitDone:
		case <-time.After(3 * time.Second):
			r.launched.shutdown()
		}
	} else {
		r.launched.shutdown()
	}
	closeErr := r.client.close()
	r.client = nil
	r.launched = nil
	return closeErr
}
