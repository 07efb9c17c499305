package sstp

import "time"

// newDeadlineTimer is a small wrapper over time.NewTimer used at the
// authenticator and SSTP-control layers, where a single fixed budget (not
// the negotiator's retry loop) governs how long to wait for a reply.
func newDeadlineTimer(d time.Duration) *time.Timer {
	return time.NewTimer(d)
}
