package browser

import "context"

// Runtime manages browser pages.
type Runtime interface {
	NewPage(ctx context.Context, cfg PageConfig) (Page, error)
	Close() error
}

// Page is the port implemented by browser runtime adapters. It exposes the
// live rendered page: frame capture plus input injection. All blocking
// operations honor the provided context.
type Page interface {
	// CaptureFrame renders the current page state as a compressed image.
	CaptureFrame(ctx context.Context) (*Frame, error)
	// ViewportSize reports the current page surface dimensions.
	ViewportSize(ctx context.Context) (Viewport, error)
	// CurrentURL reports the page's current location.
	CurrentURL(ctx context.Context) (string, error)

	Click(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Navigate(ctx context.Context, url string) error
	ScrollBy(ctx context.Context, deltaY float64) error

	Close() error
}
