package sstp

// runSSTPRequest implements §4.8's request task: up to sstpRequestRetries
// attempts at sstpRequestInterval, sending Call-Connect-Request and
// accepting exactly one of Call-Connect-Ack/Nak/Disconnect/Abort.
func runSSTPRequest(sess *session, done chan<- negotiatorResult) {
	send := func() error {
		msg := newSstpControlMessage(sstpMsgTypeCallConnectRequest, []sstpAttr{encapsulatedProtocolIDAttr()})
		b, err := msg.toBytes()
		if err != nil {
			return err
		}
		return sess.transport.send(b)
	}

	if err := send(); err != nil {
		done <- negotiatorResult{where: WhereSSTPControl, result: ErrUnexpectedMessage, err: err}
		return
	}

	attempts := 1
	for {
		timer := newDeadlineTimer(sstpRequestInterval)
		select {
		case <-timer.C:
			attempts++
			if attempts > sstpRequestRetries {
				done <- negotiatorResult{where: WhereSSTPControl, result: ErrTimeout}
				return
			}
			if err := send(); err != nil {
				done <- negotiatorResult{where: WhereSSTPControl, result: ErrUnexpectedMessage, err: err}
				return
			}
			continue

		case msg, ok := <-sess.mailboxes.sstpControl:
			timer.Stop()
			if !ok {
				done <- negotiatorResult{where: WhereSSTPControl, result: ErrTimeout}
				return
			}
			switch msg.msgType {
			case sstpMsgTypeCallConnectAck:
				cbr := msg.findAttr(sstpAttrIDCryptoBindingRequest)
				if cbr == nil {
					done <- negotiatorResult{where: WhereSSTPControl, result: ErrParsingFailed}
					return
				}
				req, err := parseCryptoBindingRequestBody(cbr.body)
				if err != nil {
					done <- negotiatorResult{where: WhereSSTPControl, result: ErrParsingFailed, err: err}
					return
				}
				hp, ok := hashProtocolFromBitmask(req.hashBitmask)
				if !ok {
					done <- negotiatorResult{where: WhereSSTPControl, result: ErrUnknownType}
					return
				}
				sess.negotiated.nonce = req.nonce
				sess.negotiated.hashProtocol = hp
				done <- negotiatorResult{where: WhereSSTPControl, result: Proceeded}
				return

			case sstpMsgTypeCallConnectNak:
				done <- negotiatorResult{where: WhereSSTPControl, result: ErrNegativeAcknowledged}
				return
			case sstpMsgTypeCallDisconnect:
				done <- negotiatorResult{where: WhereSSTPControl, result: ErrDisconnectRequested}
				return
			case sstpMsgTypeCallAbort:
				done <- negotiatorResult{where: WhereSSTPControl, result: ErrAbortRequested}
				return
			default:
				done <- negotiatorResult{where: WhereSSTPControl, result: ErrUnexpectedMessage}
				return
			}
		}
	}
}

// buildCallConnected assembles the Call-Connected control message per
// §4.8: a Crypto-Binding attribute covering the server's nonce, the leaf
// certificate hash, and a compound MAC computed by re-serializing the
// packet with the MAC field zeroed.
func buildCallConnected(sess *session, leafDER []byte) ([]byte, error) {
	hp := sess.negotiated.hashProtocol
	certHash := certHashPadded(leafDER, hp)

	assemble := func(body *cryptoBindingBody) ([]byte, error) {
		attr := newSstpAttr(sstpAttrIDCryptoBinding, body.toBytes())
		msg := newSstpControlMessage(sstpMsgTypeCallConnected, []sstpAttr{attr})
		return msg.toBytes()
	}

	attr, err := buildCryptoBindingAttr(sess.negotiated.hlak, hp, sess.negotiated.nonce, certHash, assemble)
	if err != nil {
		return nil, err
	}

	msg := newSstpControlMessage(sstpMsgTypeCallConnected, []sstpAttr{attr})
	return msg.toBytes()
}

// runSSTPControl implements §4.8's control task (post-Call-Connected):
// Echo-Request/Response and Disconnect/Abort handling on the SSTP-control
// mailbox.
func runSSTPControl(sess *session, done chan<- negotiatorResult) {
	for msg := range sess.mailboxes.sstpControl {
		switch msg.msgType {
		case sstpMsgTypeEchoRequest:
			reply := newSstpControlMessage(sstpMsgTypeEchoResponse, nil)
			b, err := reply.toBytes()
			if err != nil {
				continue
			}
			_ = sess.transport.send(b)
		case sstpMsgTypeEchoResponse:
			// no-op; the SSTP echo-timer was already ticked by the demux.
		case sstpMsgTypeCallDisconnect:
			done <- negotiatorResult{where: WhereSSTPControl, result: ErrDisconnectRequested}
			return
		case sstpMsgTypeCallAbort:
			done <- negotiatorResult{where: WhereSSTPControl, result: ErrAbortRequested}
			return
		default:
			done <- negotiatorResult{where: WhereSSTPControl, result: ErrUnexpectedMessage}
			return
		}
	}
}

// sstpEcho sends an Echo-Request; it is the echoFn for the SSTP echoTimer.
func sstpEcho(sess *session) {
	msg := newSstpControlMessage(sstpMsgTypeEchoRequest, nil)
	b, err := msg.toBytes()
	if err != nil {
		return
	}
	_ = sess.transport.send(b)
}

// lcpEcho sends an LCP Echo-Request; it is the echoFn for the PPP echoTimer.
func lcpEcho(sess *session) {
	id := sess.negotiated.nextFrameID()
	frame := newRawFrame(pppCodeEchoRequest, id, nil)
	_ = sendPppFrame(sess, pppProtocolLCP, frame)
}
