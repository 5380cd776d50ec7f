package stream

import (
	"github.com/odvcencio/pagecast/pkg/browser"
	"github.com/odvcencio/pagecast/pkg/logging"
)

// Broadcaster serializes frames once and fans them out to every registered
// viewer. Clients whose send fails are collected during iteration and removed
// afterwards; one slow or dead viewer never blocks delivery to the rest.
type Broadcaster struct {
	registry *Registry
	logger   *logging.Logger
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger *logging.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: logger}
}

// BroadcastFrame encodes the frame into a single wire payload and attempts
// delivery to every client in a registry snapshot.
func (b *Broadcaster) BroadcastFrame(frame *browser.Frame) {
	payload, err := encodeFrame(frame)
	if err != nil {
		b.logger.Error(logging.CategoryCapture, "frame_encode_failed", err.Error(), nil)
		return
	}
	b.broadcast(payload)
	metricFramesBroadcast.Inc()
}

func (b *Broadcaster) broadcast(payload []byte) {
	var stale []*Client
	for _, c := range b.registry.Snapshot() {
		if !c.enqueue(payload) {
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		b.registry.Remove(c)
		metricSendFailures.Inc()
		b.logger.Warn(logging.CategoryClient, "client_dropped", "send buffer full, removing viewer", map[string]any{
			"client_id": c.ID,
		})
	}
}
