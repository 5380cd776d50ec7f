package browser

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUnavailable(t *testing.T) {
	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(errors.New("boom")))

	assert.True(t, IsUnavailable(ErrUnavailable))
	assert.True(t, IsUnavailable(ErrPageClosed))
	assert.True(t, IsUnavailable(fmt.Errorf("capture: %w", ErrConnectionLost)))

	assert.True(t, IsUnavailable(NewCDPError("connection_lost", "socket closed")))
	assert.False(t, IsUnavailable(NewCDPError("command_failed", "bad params")))
}

func TestCDPErrorUnwrap(t *testing.T) {
	cause := errors.New("dial refused")
	err := WrapCDPError("dial_failed", "connecting to devtools", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial_failed")
	assert.Contains(t, err.Error(), "dial refused")
}
