package sstp

import (
	"crypto/rand"
	"encoding/binary"
)

// eapTypeDataBody builds the payload of an EAP Request/Response frame: a
// 1-byte type followed by type-data. Such frames reuse the raw-payload
// pppFrame path, with the code/id/length header carried by the pppFrame;
// the type byte is the first byte of payload.
func eapTypeDataBody(eapT eapType, typeData []byte) []byte {
	body := make([]byte, 1+len(typeData))
	body[0] = byte(eapT)
	copy(body[1:], typeData)
	return body
}

func mschapv2OpBody(op mschapv2OpCode, id uint8, data []byte) []byte {
	body := make([]byte, 4+len(data))
	body[0] = byte(op)
	body[1] = id
	// bytes 2:4 are the MS-CHAPv2 message length: the length of this body
	// from the OpCode onward, i.e. the outer EAP length minus 5.
	binary.BigEndian.PutUint16(body[2:4], uint16(len(body)))
	copy(body[4:], data)
	return body
}

// runEAPMSCHAPv2 implements §4.7's EAP-MSCHAPv2 authenticator: an Identity
// round-trip followed by an MS-CHAPv2 challenge/response/success exchange
// carried as EAP Type 26 (MS-Auth) type-data.
func runEAPMSCHAPv2(sess *session, mailbox <-chan *pppFrame, done chan<- negotiatorResult) {
	timer := newDeadlineTimer(sess.config.PPP.AuthTimeout)
	defer timer.Stop()

	// Identity round-trip.
	select {
	case <-timer.C:
		done <- negotiatorResult{where: WhereAuth, result: ErrTimeout}
		return
	case msg, ok := <-mailbox:
		if !ok || eapCode(msg.header.Code) != eapCodeRequest || len(msg.payload) < 1 || eapType(msg.payload[0]) != eapTypeIdentity {
			done <- negotiatorResult{where: WhereAuth, result: ErrUnexpectedMessage}
			return
		}
		reply := newRawFrame(pppCode(eapCodeResponse), msg.header.ID, eapTypeDataBody(eapTypeIdentity, []byte(sess.config.Username)))
		if err := sendPppFrame(sess, pppProtocolEAP, reply); err != nil {
			done <- negotiatorResult{where: WhereAuth, result: ErrAuthenticationFailed, err: err}
			return
		}
	}

	// MS-Auth challenge.
	var authChallenge [16]byte
	var challengeID uint8
	select {
	case <-timer.C:
		done <- negotiatorResult{where: WhereAuth, result: ErrTimeout}
		return
	case msg, ok := <-mailbox:
		if !ok || eapCode(msg.header.Code) != eapCodeRequest || len(msg.payload) < 1 || eapType(msg.payload[0]) != eapTypeMSAuth {
			done <- negotiatorResult{where: WhereAuth, result: ErrUnexpectedMessage}
			return
		}
		inner := msg.payload[1:]
		if len(inner) < 5+16 || mschapv2OpCode(inner[0]) != mschapv2OpChallenge {
			done <- negotiatorResult{where: WhereAuth, result: ErrParsingFailed}
			return
		}
		challengeID = inner[1]
		copy(authChallenge[:], inner[5:21])
	}

	var peerChallenge [16]byte
	if _, err := rand.Read(peerChallenge[:]); err != nil {
		done <- negotiatorResult{where: WhereAuth, result: ErrAuthenticationFailed, err: err}
		return
	}
	ntResponse := generateNTResponse(authChallenge, peerChallenge, sess.config.Username, sess.config.Password)

	respData := mschapv2ResponseData(peerChallenge, ntResponse)
	respBody := mschapv2OpBody(mschapv2OpResponse, challengeID, respData)
	reply := newRawFrame(pppCode(eapCodeResponse), challengeID, eapTypeDataBody(eapTypeMSAuth, respBody))
	if err := sendPppFrame(sess, pppProtocolEAP, reply); err != nil {
		done <- negotiatorResult{where: WhereAuth, result: ErrAuthenticationFailed, err: err}
		return
	}

	select {
	case <-timer.C:
		done <- negotiatorResult{where: WhereAuth, result: ErrTimeout}
		return
	case msg, ok := <-mailbox:
		if !ok {
			done <- negotiatorResult{where: WhereAuth, result: ErrTimeout}
			return
		}
		switch eapCode(msg.header.Code) {
		case eapCodeSuccess:
			sess.negotiated.currentAuth = AuthProtocolEAPMSCHAPv2
			sess.negotiated.hlak = deriveHLAK(sess.config.Password, ntResponse, peerChallenge, authChallenge, sess.config.Username)
			done <- negotiatorResult{where: WhereAuth, result: Proceeded}
		case eapCodeFailure:
			done <- negotiatorResult{where: WhereAuth, result: ErrAuthenticationFailed}
		default:
			done <- negotiatorResult{where: WhereAuth, result: ErrUnexpectedMessage}
		}
	}
}

func mschapv2ResponseData(peerChallenge [16]byte, ntResponse []byte) []byte {
	data := make([]byte, 16+8+24+1)
	copy(data[0:16], peerChallenge[:])
	copy(data[24:48], ntResponse)
	data[48] = 0
	return data
}
