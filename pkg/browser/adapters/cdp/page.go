package cdp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/pagecast/pkg/browser"
)

// page drives a single attached DevTools target through flat-session
// commands. All methods are safe for concurrent use with Close.
type page struct {
	client    *client
	sessionID string
	targetID  string
	cfg       browser.PageConfig
	opTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (p *page) ensureOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return browser.ErrPageClosed
	}
	return nil
}

func (p *page) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.opTimeout)
}

type captureScreenshotParams struct {
	Format  string `json:"format"`
	Quality int    `json:"quality,omitempty"`
}

type captureScreenshotResult struct {
	Data string `json:"data"`
}

func (p *page) CaptureFrame(ctx context.Context) (*browser.Frame, error) {
	if err := p.ensureOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	params := captureScreenshotParams{Format: string(browser.FrameFormatJPEG), Quality: p.cfg.JPEGQuality}
	var res captureScreenshotResult
	if err := p.client.call(ctx, p.sessionID, "Page.captureScreenshot", params, &res); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(res.Data)
	if err != nil {
		return nil, browser.WrapCDPError("decode", "screenshot payload", err)
	}
	vp, err := p.ViewportSize(ctx)
	if err != nil {
		vp = p.cfg.Viewport
	}
	return &browser.Frame{
		Data:      data,
		Format:    browser.FrameFormatJPEG,
		Width:     vp.Width,
		Height:    vp.Height,
		Timestamp: time.Now(),
	}, nil
}

type layoutMetricsResult struct {
	CSSLayoutViewport struct {
		ClientWidth  int `json:"clientWidth"`
		ClientHeight int `json:"clientHeight"`
	} `json:"cssLayoutViewport"`
}

func (p *page) ViewportSize(ctx context.Context) (browser.Viewport, error) {
	if err := p.ensureOpen(); err != nil {
		return browser.Viewport{}, err
	}
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	var res layoutMetricsResult
	if err := p.client.call(ctx, p.sessionID, "Page.getLayoutMetrics", nil, &res); err != nil {
		return browser.Viewport{}, err
	}
	if res.CSSLayoutViewport.ClientWidth == 0 || res.CSSLayoutViewport.ClientHeight == 0 {
		return p.cfg.Viewport, nil
	}
	return browser.Viewport{
		Width:  res.CSSLayoutViewport.ClientWidth,
		Height: res.CSSLayoutViewport.ClientHeight,
	}, nil
}

type targetInfoParams struct {
	TargetID string `json:"targetId"`
}

type targetInfoResult struct {
	TargetInfo struct {
		URL string `json:"url"`
	} `json:"targetInfo"`
}

func (p *page) CurrentURL(ctx context.Context) (string, error) {
	if err := p.ensureOpen(); err != nil {
		return "", err
	}
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	var res targetInfoResult
	err := p.client.call(ctx, "", "Target.getTargetInfo", targetInfoParams{TargetID: p.targetID}, &res)
	if err != nil {
		return "", err
	}
	return res.TargetInfo.URL, nil
}

type mouseEventParams struct {
	Type       string `json:"type"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Button     string `json:"button"`
	ClickCount int    `json:"clickCount"`
}

func (p *page) Click(ctx context.Context, x, y int) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	press := mouseEventParams{Type: "mousePressed", X: x, Y: y, Button: "left", ClickCount: 1}
	if err := p.client.call(ctx, p.sessionID, "Input.dispatchMouseEvent", press, nil); err != nil {
		return err
	}
	release := press
	release.Type = "mouseReleased"
	return p.client.call(ctx, p.sessionID, "Input.dispatchMouseEvent", release, nil)
}

type insertTextParams struct {
	Text string `json:"text"`
}

func (p *page) TypeText(ctx context.Context, text string) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := p.opCtx(ctx)
	defer cancel()
	return p.client.call(ctx, p.sessionID, "Input.insertText", insertTextParams{Text: text}, nil)
}

type keyEventParams struct {
	Type string `json:"type"`
	Key  string `json:"key"`
	Code string `json:"code,omitempty"`
	Text string `json:"text,omitempty"`
}

// keyCodes maps the browser event key names the viewer emits to DOM code
// values so named keys land as real key presses rather than text.
var keyCodes = map[string]string{
	"Enter":      "Enter",
	"Backspace":  "Backspace",
	"Tab":        "Tab",
	"Escape":     "Escape",
	"ArrowUp":    "ArrowUp",
	"ArrowDown":  "ArrowDown",
	"ArrowLeft":  "ArrowLeft",
	"ArrowRight": "ArrowRight",
	"Home":       "Home",
	"End":        "End",
	"PageUp":     "PageUp",
	"PageDown":   "PageDown",
	"Delete":     "Delete",
}

func (p *page) PressKey(ctx context.Context, key string) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	down := keyEventParams{Type: "rawKeyDown", Key: key, Code: keyCodes[key]}
	if key == "Enter" {
		down.Text = "\r"
		down.Type = "keyDown"
	}
	if err := p.client.call(ctx, p.sessionID, "Input.dispatchKeyEvent", down, nil); err != nil {
		return err
	}
	up := keyEventParams{Type: "keyUp", Key: key, Code: keyCodes[key]}
	return p.client.call(ctx, p.sessionID, "Input.dispatchKeyEvent", up, nil)
}

type navigateParams struct {
	URL string `json:"url"`
}

type navigateResult struct {
	ErrorText string `json:"errorText,omitempty"`
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	var res navigateResult
	if err := p.client.call(ctx, p.sessionID, "Page.navigate", navigateParams{URL: url}, &res); err != nil {
		return err
	}
	if res.ErrorText != "" && !strings.HasPrefix(res.ErrorText, "net::ERR_ABORTED") {
		return browser.NewCDPError("navigation_failed", res.ErrorText)
	}
	return nil
}

type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
}

func (p *page) ScrollBy(ctx context.Context, deltaY float64) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	expr := fmt.Sprintf("window.scrollBy(0, %.2f)", deltaY)
	return p.client.call(ctx, p.sessionID, "Runtime.evaluate", evaluateParams{Expression: expr, ReturnByValue: true}, nil)
}

type closeTargetParams struct {
	TargetID string `json:"targetId"`
}

func (p *page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.opTimeout)
	defer cancel()
	return p.client.call(ctx, "", "Target.closeTarget", closeTargetParams{TargetID: p.targetID}, nil)
}
