package platform

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestSignalQueue_PushThenPopIsFIFO(t *testing.T) {
	q := newSignalQueue()
	q.push(SIGHUP)
	q.push(SIGTERM)

	assert.Equal(t, q.len(), 2)

	sig, ok := q.pop()
	assert.Assert(t, ok)
	assert.Equal(t, sig, SIGHUP)

	sig, ok = q.pop()
	assert.Assert(t, ok)
	assert.Equal(t, sig, SIGTERM)

	_, ok = q.pop()
	assert.Assert(t, !ok, "popping an empty queue reports ok=false, not a zero Signal")
}

func TestSignalQueue_WaitChanClosesOnPush(t *testing.T) {
	q := newSignalQueue()
	ch := q.waitChan()

	select {
	case <-ch:
		t.Fatal("waitChan must not be closed before any signal is pushed")
	default:
	}

	q.push(SIGUSR1)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waitChan did not close after push")
	}
}

func TestSignalQueue_WaitChanIsFreshPerPush(t *testing.T) {
	q := newSignalQueue()
	first := q.waitChan()
	q.push(SIGHUP)
	second := q.waitChan()

	select {
	case <-second:
		t.Fatal("a new waitChan obtained after a push must not already be closed")
	default:
	}

	q.push(SIGTERM)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("the later waitChan should close on the next push")
	}

	select {
	case <-first:
	default:
		t.Fatal("the earlier waitChan should remain closed from its own push")
	}
}

func TestPlatformSleep_ReturnsEarlyOnSignal(t *testing.T) {
	p := New()

	done := make(chan bool, 1)
	go func() { done <- p.Sleep(60) }()

	time.Sleep(20 * time.Millisecond)
	p.queue.push(SIGTERM)

	select {
	case woke := <-done:
		assert.Assert(t, woke)
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep did not wake on signal")
	}
}

func TestPlatformSleep_TimesOutWithoutSignal(t *testing.T) {
	p := New()

	woke := p.Sleep(0.01)

	assert.Assert(t, !woke)
}

func TestPlatformSleep_NonPositiveDurationChecksQueueOnly(t *testing.T) {
	p := New()

	assert.Assert(t, !p.Sleep(0))

	p.queue.push(SIGINT)

	assert.Assert(t, p.Sleep(0))
}

func TestParseQueueKey(t *testing.T) {
	assert.DeepEqual(t, ParseQueueKey("high,low"), []string{"high", "low"})
	assert.DeepEqual(t, ParseQueueKey("default"), []string{"default"})
	assert.Assert(t, ParseQueueKey("") == nil)
}

func TestPlatformNextDeadChild_EmptyWhenNothingTracked(t *testing.T) {
	p := New()

	_, ok := p.NextDeadChild(false)

	assert.Assert(t, !ok)
}

func TestPlatformSetQuitOnExitSignal_RecordsFlagAndSignal(t *testing.T) {
	p := New()
	p.SetQuitOnExitSignal(true, SIGTERM)

	p.mu.Lock()
	quit, sig := p.quitOnExit, p.lastExitSignal
	p.mu.Unlock()

	assert.Assert(t, quit)
	assert.Equal(t, sig, SIGTERM)
}
