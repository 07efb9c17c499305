package sstp

import "time"

// echoTimer tracks liveness for one protocol layer (SSTP or PPP). It does
// not run its own goroutine: tick and checkAlive are both driven from the
// demultiplexer's read loop, so no cross-task synchronisation is needed
// (§5, "Ordering guarantees").
type echoTimer struct {
	interval time.Duration
	echoFn   func()

	lastTicked    time.Time
	deadline      time.Time
	awaitingReply bool
}

func newEchoTimer(interval time.Duration, echoFn func()) *echoTimer {
	return &echoTimer{
		interval:   interval,
		echoFn:     echoFn,
		lastTicked: time.Now(),
	}
}

// tick resets the timer on receipt of a frame at this layer.
func (t *echoTimer) tick() {
	t.lastTicked = time.Now()
	t.awaitingReply = false
}

// checkAlive implements §4.10's state machine: it returns false once an
// outstanding echo has gone unanswered past its deadline, and keeps
// returning false on every later call until tick is called.
func (t *echoTimer) checkAlive() bool {
	now := time.Now()
	if now.Sub(t.lastTicked) <= t.interval {
		return true
	}
	if t.awaitingReply {
		return !now.After(t.deadline)
	}
	t.echoFn()
	t.awaitingReply = true
	t.deadline = now.Add(t.interval)
	return true
}
