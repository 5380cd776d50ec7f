package stream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestRegistryAddRemoveSnapshot(t *testing.T) {
	r := NewRegistry()
	a := NewClient("a", &fakeConn{})
	b := NewClient("b", &fakeConn{})

	r.Add(a)
	r.Add(b)
	assert.Equal(t, 2, r.Len())

	// set semantics: adding a member twice changes nothing
	r.Add(a)
	assert.Equal(t, 2, r.Len())

	snapshot := r.Snapshot()
	assert.Len(t, snapshot, 2)

	r.Remove(a)
	assert.Equal(t, 1, r.Len())

	// removing an absent client is a no-op, and must not close twice
	r.Remove(a)
	assert.Equal(t, 1, r.Len())

	// the earlier snapshot is unaffected by the removal
	assert.Len(t, snapshot, 2)
}

func TestRegistryRemoveClosesSendBuffer(t *testing.T) {
	r := NewRegistry()
	c := NewClient("a", &fakeConn{})
	r.Add(c)
	r.Remove(c)

	_, open := <-c.send
	assert.False(t, open, "send buffer should be closed after removal")

	// a stale snapshot enqueueing after removal fails instead of panicking
	assert.False(t, c.Send([]byte("late")))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("x", &fakeConn{})
			r.Add(c)
			_ = r.Snapshot()
			_ = r.Len()
			r.Remove(c)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}

func TestClientWriteLoopDrainsBuffer(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("a", conn)

	require.True(t, c.Send([]byte("one")))
	require.True(t, c.Send([]byte("two")))
	c.closeSend()

	err := c.WriteLoop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, conn.writeCount())
}

func TestClientWriteLoopStopsOnWriteError(t *testing.T) {
	conn := &fakeConn{writeErr: assert.AnError}
	c := NewClient("a", conn)
	require.True(t, c.Send([]byte("one")))

	err := c.WriteLoop(context.Background())
	require.Error(t, err)
}

func TestClientEnqueueFailsWhenBufferFull(t *testing.T) {
	c := NewClient("a", &fakeConn{})
	for i := 0; i < clientSendBuffer; i++ {
		require.True(t, c.enqueue([]byte("payload")))
	}
	assert.False(t, c.enqueue([]byte("overflow")))
	c.CloseConn(websocket.StatusNormalClosure, "done")
}
