package stream

import (
	"encoding/json"

	"github.com/odvcencio/pagecast/pkg/browser"
)

// frameMessage is the outbound frame payload. The image bytes are emitted as
// base64 text by the JSON encoder.
type frameMessage struct {
	Type   string `json:"type"`
	Image  []byte `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// metaMessage is sent once per connection, immediately after the handshake.
type metaMessage struct {
	Type     string           `json:"type"`
	Viewport browser.Viewport `json:"viewport"`
	URL      string           `json:"url"`
}

// EncodeMeta serializes the connect-time metadata message.
func EncodeMeta(viewport browser.Viewport, url string) ([]byte, error) {
	return json.Marshal(metaMessage{Type: "meta", Viewport: viewport, URL: url})
}

func encodeFrame(frame *browser.Frame) ([]byte, error) {
	return json.Marshal(frameMessage{
		Type:   "frame",
		Image:  frame.Data,
		Width:  frame.Width,
		Height: frame.Height,
	})
}
