package sstp

import "encoding/binary"

// runPPPControl implements §4.6: a long-running task bound to the
// PPP-control mailbox, which the demultiplexer feeds with two kinds of
// frame once LCP negotiation has completed: post-negotiation LCP
// non-Configure codes (Echo-Request/Reply, Discard-Request,
// Terminate-Request, Protocol-Reject, Code-Reject), and frames for any
// protocol this client doesn't otherwise recognise.
func runPPPControl(sess *session, mailbox <-chan *pppFrame, done chan<- negotiatorResult) {
	for msg := range mailbox {
		if msg.proto != pppProtocolLCP {
			sendProtocolReject(sess, msg)
			continue
		}

		switch msg.header.Code {
		case pppCodeEchoRequest:
			reply := newRawFrame(pppCodeEchoReply, msg.header.ID, msg.payload)
			_ = sendPppFrame(sess, pppProtocolLCP, reply)

		case pppCodeEchoReply, pppCodeDiscardRequest:
			// no-op; the PPP echo-timer was already ticked by the demux.

		case pppCodeTerminateRequest:
			ack := newRawFrame(pppCodeTerminateAck, msg.header.ID, nil)
			_ = sendPppFrame(sess, pppProtocolLCP, ack)
			done <- negotiatorResult{where: WhereLCP, result: ErrTerminateRequested}
			return

		case pppCodeProtocolReject:
			done <- negotiatorResult{where: WhereLCP, result: ErrProtocolRejected}
			return

		case pppCodeCodeReject:
			done <- negotiatorResult{where: WhereLCP, result: ErrCodeRejected}
			return

		default:
			sendCodeReject(sess, msg)
		}
	}
}

// sendProtocolReject implements RFC 1661 §5.7: the rejected packet's
// protocol number followed by the packet itself (here, its undecoded
// frame-header-plus-body bytes).
func sendProtocolReject(sess *session, msg *pppFrame) {
	info := make([]byte, 2+len(msg.raw))
	binary.BigEndian.PutUint16(info[0:2], uint16(msg.proto))
	copy(info[2:], msg.raw)
	reject := newRawFrame(pppCodeProtocolReject, sess.negotiated.nextFrameID(), info)
	_ = sendPppFrame(sess, pppProtocolLCP, reject)
}

// sendCodeReject implements RFC 1661 §5.6 for an LCP frame whose Code this
// client doesn't recognise: the rejected packet is echoed back verbatim as
// the Code-Reject's information field.
func sendCodeReject(sess *session, msg *pppFrame) {
	reject := newRawFrame(pppCodeCodeReject, sess.negotiated.nextFrameID(), msg.raw)
	_ = sendPppFrame(sess, pppProtocolLCP, reject)
}
