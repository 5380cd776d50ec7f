package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/odvcencio/pagecast/pkg/browser"
)

type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   atomic.Bool
}

func (f *fakeConn) Write(ctx context.Context, _ websocket.MessageType, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.writes = append(f.writes, buf)
	return nil
}

func (f *fakeConn) Close(_ websocket.StatusCode, _ string) error {
	f.closed.Store(true)
	return nil
}

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// fakePage is an instrumented browser.Page. It records every action and
// tracks concurrent in-flight applications so tests can assert the mutation
// gate holds.
type fakePage struct {
	mu       sync.Mutex
	viewport browser.Viewport
	url      string
	actions  []string

	captureErr  error
	actionErr   error
	viewportErr error
	closeErr    error

	captureCount atomic.Int32
	closeCount   atomic.Int32

	applyDelay  time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakePage() *fakePage {
	return &fakePage{viewport: browser.Viewport{Width: 1280, Height: 720}, url: "https://example.com"}
}

func (p *fakePage) enter() {
	n := p.inFlight.Add(1)
	for {
		max := p.maxInFlight.Load()
		if n <= max || p.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	if p.applyDelay > 0 {
		time.Sleep(p.applyDelay)
	}
}

func (p *fakePage) exit() {
	p.inFlight.Add(-1)
}

func (p *fakePage) record(action string) error {
	p.enter()
	defer p.exit()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.actionErr != nil {
		return p.actionErr
	}
	p.actions = append(p.actions, action)
	return nil
}

func (p *fakePage) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.actions))
	copy(out, p.actions)
	return out
}

func (p *fakePage) CaptureFrame(ctx context.Context) (*browser.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	err := p.captureErr
	vp := p.viewport
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	p.captureCount.Add(1)
	return &browser.Frame{
		Data:      []byte{0xff, 0xd8, 0xff},
		Format:    browser.FrameFormatJPEG,
		Width:     vp.Width,
		Height:    vp.Height,
		Timestamp: time.Now(),
	}, nil
}

func (p *fakePage) ViewportSize(ctx context.Context) (browser.Viewport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.viewportErr != nil {
		return browser.Viewport{}, p.viewportErr
	}
	return p.viewport, nil
}

func (p *fakePage) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Click(ctx context.Context, x, y int) error {
	return p.record(fmt.Sprintf("click %d,%d", x, y))
}

func (p *fakePage) TypeText(ctx context.Context, text string) error {
	return p.record("type " + text)
}

func (p *fakePage) PressKey(ctx context.Context, key string) error {
	return p.record("press " + key)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return p.record("navigate " + url)
}

func (p *fakePage) ScrollBy(ctx context.Context, deltaY float64) error {
	return p.record(fmt.Sprintf("scroll %g", deltaY))
}

func (p *fakePage) Close() error {
	p.closeCount.Add(1)
	return p.closeErr
}

// fakeRuntime hands out a fixed page or a configured error.
type fakeRuntime struct {
	page      browser.Page
	newErr    error
	closeErr  error
	newCalls  atomic.Int32
	closeCall atomic.Int32
}

func (r *fakeRuntime) NewPage(ctx context.Context, cfg browser.PageConfig) (browser.Page, error) {
	r.newCalls.Add(1)
	if r.newErr != nil {
		return nil, r.newErr
	}
	return r.page, nil
}

func (r *fakeRuntime) Close() error {
	r.closeCall.Add(1)
	return r.closeErr
}
