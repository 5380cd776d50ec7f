package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventName identifies a control event kind. The set is closed; unknown
// names are rejected at the boundary.
type EventName string

const (
	EventClick    EventName = "click"
	EventKey      EventName = "key"
	EventNavigate EventName = "navigate"
	EventWheel    EventName = "wheel"
)

// Event is a single control action received from a viewer. It is produced by
// one client message, consumed exactly once by the pipeline, then discarded.
type Event struct {
	Name EventName `json:"name"`

	// Click coordinates, relative to the current viewport so they survive
	// viewport resizes.
	XRatio float64 `json:"x_ratio,omitempty"`
	YRatio float64 `json:"y_ratio,omitempty"`

	// Key payload: a single character is typed as text, anything longer is
	// pressed as a named key.
	Key string `json:"key,omitempty"`

	URL string `json:"url,omitempty"`

	DeltaY       float64 `json:"deltaY,omitempty"`
	ClientHeight float64 `json:"clientHeight,omitempty"`
}

// clientMessage is the inbound wire envelope.
type clientMessage struct {
	Type string `json:"type"`
	Event
}

// ParseClientMessage decodes one inbound viewer message into an Event.
// Malformed JSON, a non-event envelope, or an unknown event name all yield
// an error; the caller logs and drops the message without closing the
// connection.
func ParseClientMessage(data []byte) (Event, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, fmt.Errorf("malformed client message: %w", err)
	}
	if msg.Type != "event" {
		return Event{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	ev := msg.Event
	switch ev.Name {
	case EventClick:
		if ev.XRatio < 0 || ev.XRatio > 1 || ev.YRatio < 0 || ev.YRatio > 1 {
			return Event{}, fmt.Errorf("click ratios out of range: (%v, %v)", ev.XRatio, ev.YRatio)
		}
	case EventKey:
		if ev.Key == "" {
			return Event{}, fmt.Errorf("key event with empty key")
		}
	case EventNavigate:
		if strings.TrimSpace(ev.URL) == "" {
			return Event{}, fmt.Errorf("navigate event with empty url")
		}
	case EventWheel:
	default:
		return Event{}, fmt.Errorf("unknown event name %q", ev.Name)
	}
	return ev, nil
}
