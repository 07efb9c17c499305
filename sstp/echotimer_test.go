package sstp

import (
	"testing"
	"time"
)

func TestEchoTimerStaysAliveWithinInterval(t *testing.T) {
	echoes := 0
	et := newEchoTimer(50*time.Millisecond, func() { echoes++ })

	if !et.checkAlive() {
		t.Fatalf("expected checkAlive to report alive immediately after creation")
	}
	if echoes != 0 {
		t.Fatalf("expected no echo to be sent within the interval, got %d", echoes)
	}
}

func TestEchoTimerSendsEchoOnceDeadlinePasses(t *testing.T) {
	echoes := 0
	et := newEchoTimer(10*time.Millisecond, func() { echoes++ })
	et.lastTicked = time.Now().Add(-20 * time.Millisecond)

	if !et.checkAlive() {
		t.Fatalf("expected checkAlive to still report alive on the first missed interval")
	}
	if echoes != 1 {
		t.Fatalf("expected exactly one echo to be sent, got %d", echoes)
	}
	if !et.awaitingReply {
		t.Fatalf("expected awaitingReply to be set after sending an echo")
	}

	// A second call before the reply deadline must not send another echo.
	if !et.checkAlive() {
		t.Fatalf("expected checkAlive to still report alive while awaiting a reply")
	}
	if echoes != 1 {
		t.Fatalf("expected no additional echo while awaiting a reply, got %d", echoes)
	}
}

func TestEchoTimerReportsDeadOnceDeadlineExpires(t *testing.T) {
	echoes := 0
	et := newEchoTimer(10*time.Millisecond, func() { echoes++ })
	et.lastTicked = time.Now().Add(-20 * time.Millisecond)

	if !et.checkAlive() {
		t.Fatalf("expected checkAlive to still report alive on the first missed interval")
	}
	if echoes != 1 {
		t.Fatalf("expected one echo to be sent, got %d", echoes)
	}

	// Force the reply deadline itself into the past.
	et.deadline = time.Now().Add(-1 * time.Millisecond)

	if et.checkAlive() {
		t.Fatalf("expected checkAlive to report dead once the reply deadline has passed")
	}
}

func TestEchoTimerTickResetsState(t *testing.T) {
	echoes := 0
	et := newEchoTimer(10*time.Millisecond, func() { echoes++ })
	et.lastTicked = time.Now().Add(-20 * time.Millisecond)
	et.checkAlive()
	if !et.awaitingReply {
		t.Fatalf("expected awaitingReply to be set before tick")
	}

	et.tick()
	if et.awaitingReply {
		t.Fatalf("expected tick to clear awaitingReply")
	}
	if time.Since(et.lastTicked) > 50*time.Millisecond {
		t.Fatalf("expected tick to refresh lastTicked")
	}

	if !et.checkAlive() {
		t.Fatalf("expected checkAlive to report alive immediately after tick")
	}
	if echoes != 1 {
		t.Fatalf("expected no additional echo right after tick, got %d", echoes)
	}
}
