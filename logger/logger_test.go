package logger

import (
	"os"
	"strconv"
	"testing"

	"gotest.tools/v3/assert"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, Emergency.String(), "emergency")
	assert.Equal(t, Debug.String(), "debug")
	assert.Equal(t, Level(99).String(), "unknown")
}

func TestInterpolate(t *testing.T) {
	out := interpolate("worker {pid} from {queue} exited", map[string]any{"pid": 42, "queue": "high,low"})

	assert.Equal(t, out, "worker 42 from high,low exited")
}

func TestInterpolate_NoContextReturnsTemplateUnchanged(t *testing.T) {
	assert.Equal(t, interpolate("plain message", nil), "plain message")
}

func TestLogger_PrefixIncludesRoleAppAndPid(t *testing.T) {
	l := New(Debug, "myapp")

	prefix := l.prefix()

	assert.Assert(t, prefix == "resque-pool-worker[myapp]["+strconv.Itoa(os.Getpid())+"]")
}

func TestLogger_WithRoleDoesNotMutateOriginal(t *testing.T) {
	l := New(Debug, "")
	manager := l.WithRole("manager")

	assert.Equal(t, l.role, "worker")
	assert.Equal(t, manager.role, "manager")
}

func TestLogger_SetLevelAdjustsEnabled(t *testing.T) {
	l := New(Error, "")

	assert.Assert(t, !l.level.Enabled(Notice.toZap()))

	l.SetLevel(Debug)

	assert.Assert(t, l.level.Enabled(Notice.toZap()))
}

func TestLevelFromEnv_DefaultsToWarning(t *testing.T) {
	os.Unsetenv("LOGGING")
	os.Unsetenv("VERBOSE")
	os.Unsetenv("VVERBOSE")

	assert.Equal(t, LevelFromEnv(), Warning)
}

func TestLevelFromEnv_LoggingRaisesToNotice(t *testing.T) {
	os.Setenv("LOGGING", "1")
	defer os.Unsetenv("LOGGING")
	os.Unsetenv("VVERBOSE")

	assert.Equal(t, LevelFromEnv(), Notice)
}

func TestLevelFromEnv_VVerboseRaisesToDebug(t *testing.T) {
	os.Setenv("VVERBOSE", "1")
	defer os.Unsetenv("VVERBOSE")

	assert.Equal(t, LevelFromEnv(), Debug)
}
