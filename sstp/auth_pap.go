package sstp

// papFrameHeader-free raw body: Authenticate-Request carries a one-byte
// peer-id length, the id bytes, a one-byte password length, and the
// password bytes, all UTF-8.

func papRequestBody(username, password string) []byte {
	u := []byte(username)
	pw := []byte(password)
	body := make([]byte, 0, 2+len(u)+len(pw))
	body = append(body, byte(len(u)))
	body = append(body, u...)
	body = append(body, byte(len(pw)))
	body = append(body, pw...)
	return body
}

// runPAP implements §4.7's PAP authenticator: a single Authenticate-Request
// followed by an Ack or Nak. There is no HLAK for PAP; the crypto-binding
// key is 32 zero bytes.
func runPAP(sess *session, mailbox <-chan *pppFrame, done chan<- negotiatorResult) {
	id := sess.negotiated.nextFrameID()
	req := newRawFrame(pppCode(papCodeAuthenticateRequest), id, papRequestBody(sess.config.Username, sess.config.Password))
	if err := sendPppFrame(sess, pppProtocolPAP, req); err != nil {
		done <- negotiatorResult{where: WhereAuth, result: ErrAuthenticationFailed, err: err}
		return
	}

	timer := newDeadlineTimer(sess.config.PPP.AuthTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		done <- negotiatorResult{where: WhereAuth, result: ErrTimeout}
		return
	case msg, ok := <-mailbox:
		if !ok {
			done <- negotiatorResult{where: WhereAuth, result: ErrTimeout}
			return
		}
		switch papCode(msg.header.Code) {
		case papCodeAuthenticateAck:
			sess.negotiated.currentAuth = AuthProtocolPAP
			sess.negotiated.hlak = make([]byte, 32)
			done <- negotiatorResult{where: WhereAuth, result: Proceeded}
		case papCodeAuthenticateNak:
			done <- negotiatorResult{where: WhereAuth, result: ErrAuthenticationFailed}
		default:
			done <- negotiatorResult{where: WhereAuth, result: ErrUnexpectedMessage}
		}
	}
}
