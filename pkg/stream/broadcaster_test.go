package stream

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/pagecast/pkg/browser"
	"github.com/odvcencio/pagecast/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(io.Discard)
}

func testFrame() *browser.Frame {
	return &browser.Frame{
		Data:      []byte{0xff, 0xd8, 0xff, 0x00},
		Format:    browser.FrameFormatJPEG,
		Width:     1280,
		Height:    720,
		Timestamp: time.Now(),
	}
}

func TestBroadcastDeliversIdenticalPayloadToAllClients(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, testLogger())

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = NewClient("c", &fakeConn{})
		registry.Add(clients[i])
	}

	b.BroadcastFrame(testFrame())

	var first []byte
	for i, c := range clients {
		select {
		case payload := <-c.send:
			if i == 0 {
				first = payload
			} else {
				// one serialization regardless of client count
				assert.Equal(t, first, payload)
			}
		default:
			t.Fatalf("client %d received nothing", i)
		}
	}
}

func TestBroadcastWireShape(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, testLogger())
	c := NewClient("c", &fakeConn{})
	registry.Add(c)

	frame := testFrame()
	b.BroadcastFrame(frame)

	payload := <-c.send
	var msg struct {
		Type   string `json:"type"`
		Image  string `json:"image"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "frame", msg.Type)
	assert.Equal(t, 1280, msg.Width)
	assert.Equal(t, 720, msg.Height)

	decoded, err := base64.StdEncoding.DecodeString(msg.Image)
	require.NoError(t, err)
	assert.Equal(t, frame.Data, decoded)
}

func TestBroadcastRemovesClientsWithFullBuffers(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, testLogger())

	healthy := NewClient("healthy", &fakeConn{})
	registry.Add(healthy)

	// A stalled viewer: nothing drains its buffer.
	stalled := NewClient("stalled", &fakeConn{})
	for stalled.enqueue([]byte("backlog")) {
	}
	registry.Add(stalled)

	before := registry.Len()
	b.BroadcastFrame(testFrame())

	assert.Equal(t, 2, before)
	assert.Equal(t, 1, registry.Len())

	// the healthy client still got its frame
	select {
	case <-healthy.send:
	default:
		t.Fatal("healthy client missed the broadcast")
	}

	// removed clients do not appear in the next broadcast's attempt set
	for _, c := range registry.Snapshot() {
		assert.NotSame(t, stalled, c)
	}
}

func TestBroadcastWithEmptyRegistryIsHarmless(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, testLogger())
	b.BroadcastFrame(testFrame())
	assert.Equal(t, 0, registry.Len())
}
