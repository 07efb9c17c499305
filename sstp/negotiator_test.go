package sstp

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
)

// alwaysAckPolicy is a negotiatorPolicy that never rejects or Naks and
// echoes back whatever options it is given.
type alwaysAckPolicy struct {
	requestOpts []pppOption
}

func (p *alwaysAckPolicy) tryServerReject(msg *pppFrame) ([]pppOption, bool) { return nil, false }
func (p *alwaysAckPolicy) tryServerNak(msg *pppFrame) ([]pppOption, bool)    { return nil, false }
func (p *alwaysAckPolicy) createServerAck(msg *pppFrame) []pppOption        { return msg.options }
func (p *alwaysAckPolicy) createClientRequest() []pppOption                 { return p.requestOpts }
func (p *alwaysAckPolicy) acceptClientNak(nak []pppOption) error            { return nil }
func (p *alwaysAckPolicy) acceptClientReject(rejected []pppOption) error    { return nil }

var _ negotiatorPolicy = (*alwaysAckPolicy)(nil)

func newTestSession(t *testing.T) (*session, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	cfg := DefaultConfig()
	cfg.Hostname = "vpn.example.com"
	logger := log.NewNopLogger()

	sess := newSession(cfg, logger)
	sess.transport = &transport{logger: logger, conn: serverConn}

	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	return sess, clientConn
}

func TestRunNegotiatorProceedsOnMutualAck(t *testing.T) {
	sess, clientConn := newTestSession(t)
	go io.Copy(io.Discard, clientConn)

	mailbox := make(chan *pppFrame, 4)
	done := make(chan negotiatorResult, 1)
	policy := &alwaysAckPolicy{}

	go runNegotiator(sess, WhereLCP, pppProtocolLCP, mailbox, policy, done)

	// The negotiator's own Configure-Request gets frame id 0 since this is
	// a fresh session. Ack it, then hand it a server Configure-Request of
	// our own to Ack in turn.
	mailbox <- &pppFrame{header: pppFrameHeader{Code: pppCodeConfigureAck, ID: 0}}
	mailbox <- &pppFrame{header: pppFrameHeader{Code: pppCodeConfigureRequest, ID: 1}}

	select {
	case result := <-done:
		if result.result != Proceeded {
			t.Fatalf("expected Proceeded, got %v (where=%v err=%v)", result.result, result.where, result.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("negotiator did not complete in time")
	}
}

// rejectingPolicy rejects the server's Nak of the client's own proposal by
// returning a policyError, exercising the where/result propagation path.
type rejectingPolicy struct{}

func (p *rejectingPolicy) tryServerReject(msg *pppFrame) ([]pppOption, bool) { return nil, false }
func (p *rejectingPolicy) tryServerNak(msg *pppFrame) ([]pppOption, bool)    { return nil, false }
func (p *rejectingPolicy) createServerAck(msg *pppFrame) []pppOption        { return msg.options }
func (p *rejectingPolicy) createClientRequest() []pppOption                 { return nil }
func (p *rejectingPolicy) acceptClientNak(nak []pppOption) error {
	return newPolicyError(WhereLCPAuth, ErrOptionRejected, "no acceptable auth protocol offered")
}
func (p *rejectingPolicy) acceptClientReject(rejected []pppOption) error { return nil }

var _ negotiatorPolicy = (*rejectingPolicy)(nil)

func TestRunNegotiatorPropagatesPolicyErrorOnNak(t *testing.T) {
	sess, clientConn := newTestSession(t)
	go io.Copy(io.Discard, clientConn)

	mailbox := make(chan *pppFrame, 4)
	done := make(chan negotiatorResult, 1)
	policy := &rejectingPolicy{}

	go runNegotiator(sess, WhereLCP, pppProtocolLCP, mailbox, policy, done)

	mailbox <- &pppFrame{header: pppFrameHeader{Code: pppCodeConfigureNak, ID: 0}}

	select {
	case result := <-done:
		if result.result != ErrOptionRejected {
			t.Fatalf("expected ErrOptionRejected, got %v", result.result)
		}
		if result.where != WhereLCPAuth {
			t.Fatalf("expected where=%v, got %v", WhereLCPAuth, result.where)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("negotiator did not complete in time")
	}
}

func TestRunNegotiatorTimesOutOnClosedMailbox(t *testing.T) {
	sess, clientConn := newTestSession(t)
	go io.Copy(io.Discard, clientConn)

	mailbox := make(chan *pppFrame)
	done := make(chan negotiatorResult, 1)
	policy := &alwaysAckPolicy{}

	go runNegotiator(sess, WhereLCP, pppProtocolLCP, mailbox, policy, done)
	close(mailbox)

	select {
	case result := <-done:
		if result.result != ErrTimeout {
			t.Fatalf("expected ErrTimeout, got %v", result.result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("negotiator did not complete in time")
	}
}
