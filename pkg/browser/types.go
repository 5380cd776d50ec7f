package browser

import "time"

// Viewport defines the rendered page surface size in pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultViewport is the fallback reported when a page cannot be queried.
var DefaultViewport = Viewport{Width: 1280, Height: 720}

// FrameFormat identifies the image format for a frame payload.
type FrameFormat string

const (
	FrameFormatPNG  FrameFormat = "png"
	FrameFormatJPEG FrameFormat = "jpeg"
)

// Frame is a single compressed snapshot of the rendered page. Frames are
// immutable once produced and carry no identity beyond being the latest
// capture.
type Frame struct {
	Data      []byte      `json:"data,omitempty"`
	Format    FrameFormat `json:"format"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Timestamp time.Time   `json:"timestamp"`
}

// PageConfig configures a new page acquired from a Runtime.
type PageConfig struct {
	Viewport    Viewport `json:"viewport"`
	InitialURL  string   `json:"initial_url,omitempty"`
	JPEGQuality int      `json:"jpeg_quality,omitempty"`
}

// DefaultPageConfig returns the recommended page defaults.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Viewport:    DefaultViewport,
		JPEGQuality: 60,
	}
}
