package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/pagecast/pkg/browser"
)

func newTestSession(primaryRT, mirrorRT browser.Runtime, registry *Registry) *Session {
	cfg := SessionConfig{
		InitialURL:    "https://example.com",
		Viewport:      browser.Viewport{Width: 1280, Height: 720},
		CaptureFPS:    50,
		IdlePoll:      10 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
	}
	return NewSession(primaryRT, mirrorRT, registry, NewBroadcaster(registry, testLogger()), cfg, testLogger())
}

func TestSessionStartAcquiresPrimaryAndStreams(t *testing.T) {
	page := newFakePage()
	rt := &fakeRuntime{page: page}
	registry := NewRegistry()
	sess := newTestSession(rt, nil, registry)

	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	require.NotNil(t, sess.Pipeline())
	assert.Equal(t, int32(1), rt.newCalls.Load())

	viewer := NewClient("viewer", &fakeConn{})
	registry.Add(viewer)

	select {
	case payload := <-viewer.send:
		assert.Contains(t, string(payload), `"type":"frame"`)
	case <-time.After(time.Second):
		t.Fatal("no frame delivered after client registration")
	}
}

func TestSessionStartSurvivesPrimaryFailure(t *testing.T) {
	rt := &fakeRuntime{newErr: browser.ErrUnavailable}
	registry := NewRegistry()
	sess := newTestSession(rt, nil, registry)

	require.NoError(t, sess.Start(context.Background()), "primary failure degrades, never aborts")

	// pipeline still exists and drops events instead of panicking
	p := sess.Pipeline()
	require.NotNil(t, p)
	p.applied = make(chan struct{}, 1)
	p.Submit(Event{Name: EventKey, Key: "a"})
	waitApplied(t, p, 1)

	sess.Stop()
}

func TestSessionMirrorFailureIsNonFatal(t *testing.T) {
	primaryPage := newFakePage()
	primaryRT := &fakeRuntime{page: primaryPage}
	mirrorRT := &fakeRuntime{newErr: browser.ErrUnavailable}
	sess := newTestSession(primaryRT, mirrorRT, NewRegistry())

	require.NoError(t, sess.Start(context.Background()))
	require.NotNil(t, sess.Pipeline())
	sess.Stop()

	assert.Equal(t, int32(1), primaryPage.closeCount.Load())
}

func TestSessionStopIsIdempotent(t *testing.T) {
	page := newFakePage()
	rt := &fakeRuntime{page: page}
	sess := newTestSession(rt, nil, NewRegistry())

	require.NoError(t, sess.Start(context.Background()))
	sess.Stop()
	sess.Stop()

	assert.Equal(t, int32(1), page.closeCount.Load())
}

func TestSessionStopWithoutStartIsSafe(t *testing.T) {
	sess := newTestSession(&fakeRuntime{page: newFakePage()}, nil, NewRegistry())
	assert.NotPanics(t, func() { sess.Stop() })
}

func TestSessionStopToleratesReleaseFailures(t *testing.T) {
	primaryPage := newFakePage()
	primaryPage.closeErr = assert.AnError
	primaryRT := &fakeRuntime{page: primaryPage, closeErr: assert.AnError}
	mirrorPage := newFakePage()
	mirrorRT := &fakeRuntime{page: mirrorPage}
	sess := newTestSession(primaryRT, mirrorRT, NewRegistry())

	require.NoError(t, sess.Start(context.Background()))
	sess.Stop()

	// a failing primary release never prevents the mirror's release
	assert.Equal(t, int32(1), mirrorPage.closeCount.Load())
	assert.Equal(t, int32(1), mirrorRT.closeCall.Load())
}

func TestSessionMeta(t *testing.T) {
	page := newFakePage()
	rt := &fakeRuntime{page: page}
	sess := newTestSession(rt, nil, NewRegistry())
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	viewport, url := sess.Meta(context.Background())
	assert.Equal(t, browser.Viewport{Width: 1280, Height: 720}, viewport)
	assert.Equal(t, "https://example.com", url)
}

func TestSessionMetaFallbackWithoutPage(t *testing.T) {
	sess := newTestSession(&fakeRuntime{newErr: browser.ErrUnavailable}, nil, NewRegistry())
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	viewport, url := sess.Meta(context.Background())
	assert.Equal(t, browser.DefaultViewport, viewport)
	assert.Equal(t, "", url)
}
