package pool

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, starting.String(), "starting")
	assert.Equal(t, running.String(), "running")
	assert.Equal(t, shuttingDown.String(), "shutting-down")
}

func TestTermBehavior_Default(t *testing.T) {
	var b TermBehavior
	assert.Equal(t, b, TermImmediate)
}
