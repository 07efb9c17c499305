package sstp

import (
	"time"

	"github.com/go-kit/kit/log/level"
)

// negotiatorPolicy supplies the protocol-specific decisions the generic
// Configure-Request/Ack/Nak/Reject loop (§4.5) needs: whether to reject or
// Nak an incoming request, how to build the client's own requests, and how
// to react to the server's Nak/Reject of the client's own proposal.
type negotiatorPolicy interface {
	// tryServerReject reports whether msg should be rejected outright, and
	// if so the options to echo back in the Configure-Reject.
	tryServerReject(msg *pppFrame) (reject []pppOption, ok bool)
	// tryServerNak reports whether msg should be Nak'd, and if so the
	// counter-proposed options.
	tryServerNak(msg *pppFrame) (nak []pppOption, ok bool)
	// createServerAck builds the Configure-Ack options echoing msg.
	createServerAck(msg *pppFrame) []pppOption
	// createClientRequest builds this negotiator's own Configure-Request
	// options for the given attempt.
	createClientRequest() []pppOption
	// acceptClientNak applies the server's counter-proposal to session state.
	acceptClientNak(nak []pppOption) error
	// acceptClientReject applies the server's rejection to session state.
	acceptClientReject(rejected []pppOption) error
}

// negotiatorResult is returned by runNegotiator: PROCEEDED plus nil error,
// or a non-proceeded Result (and the Where it should be blamed on)
// describing why the negotiator gave up.
type negotiatorResult struct {
	where  Where
	result Result
	err    error
}

// runNegotiator implements the algorithm in §4.5 for a single PPP control
// protocol (LCP, IPCP or IPv6CP). It is a single cooperative task: it owns
// no session state beyond what the policy mutates, and it reports exactly
// once on done.
func runNegotiator(sess *session, where Where, proto pppProtocol, mailbox <-chan *pppFrame, policy negotiatorPolicy, done chan<- negotiatorResult) {
	logger := sess.logger

	clientReady := false
	serverReady := false
	counter := maxConfigureReqs
	id := sess.negotiated.nextFrameID()

	sendRequest := func(newID uint8) {
		id = newID
		opts := policy.createClientRequest()
		frame := newConfigureFrame(pppCodeConfigureRequest, id, opts)
		if err := sendPppFrame(sess, proto, frame); err != nil {
			level.Error(logger).Log("where", where, "msg", "failed to send Configure-Request", "err", err)
		}
	}

	sendRequest(id)

	deadline := time.NewTimer(phaseTimeout)
	defer deadline.Stop()

	for {
		timer := time.NewTimer(requestInterval)
		select {
		case <-deadline.C:
			timer.Stop()
			done <- negotiatorResult{where: where, result: ErrTimeout}
			return

		case <-timer.C:
			clientReady = false
			counter--
			if counter < 0 {
				done <- negotiatorResult{where: where, result: ErrCountExhausted}
				return
			}
			sendRequest(sess.negotiated.nextFrameID())
			continue

		case msg, ok := <-mailbox:
			timer.Stop()
			if !ok {
				done <- negotiatorResult{where: where, result: ErrTimeout}
				return
			}

			if msg.header.Code == pppCodeConfigureRequest {
				serverReady = false
				if reject, isReject := policy.tryServerReject(msg); isReject {
					replyOpts(sess, proto, pppCodeConfigureReject, msg.header.ID, reject)
					continue
				}
				if nak, isNak := policy.tryServerNak(msg); isNak {
					replyOpts(sess, proto, pppCodeConfigureNak, msg.header.ID, nak)
					continue
				}
				ackOpts := policy.createServerAck(msg)
				replyOpts(sess, proto, pppCodeConfigureAck, msg.header.ID, ackOpts)
				serverReady = true
			} else {
				if clientReady {
					clientReady = false
					sendRequest(sess.negotiated.nextFrameID())
					continue
				}
				if msg.header.ID != id {
					continue
				}
				switch msg.header.Code {
				case pppCodeConfigureAck:
					clientReady = true
				case pppCodeConfigureNak:
					if err := policy.acceptClientNak(msg.options); err != nil {
						done <- negotiatorResult{where: whereOf(err, where), result: resultOf(err), err: err}
						return
					}
					sendRequest(sess.negotiated.nextFrameID())
				case pppCodeConfigureReject:
					if err := policy.acceptClientReject(msg.options); err != nil {
						done <- negotiatorResult{where: whereOf(err, where), result: resultOf(err), err: err}
						return
					}
					sendRequest(sess.negotiated.nextFrameID())
				}
			}
		}

		if clientReady && serverReady {
			counter = maxConfigureReqs
			done <- negotiatorResult{where: where, result: Proceeded}
			return
		}
	}
}

func replyOpts(sess *session, proto pppProtocol, code pppCode, id uint8, opts []pppOption) {
	frame := newConfigureFrame(code, id, opts)
	if err := sendPppFrame(sess, proto, frame); err != nil {
		level.Error(sess.logger).Log("msg", "failed to send negotiator reply", "code", code, "err", err)
	}
}
