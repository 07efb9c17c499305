package sstp

import "encoding/binary"

// lcpPolicy implements negotiatorPolicy for Link Control Protocol, per
// §4.5's LCP policies.
type lcpPolicy struct {
	sess *session

	mruRejected  bool
	authRejected bool
}

func newLCPPolicy(sess *session) *lcpPolicy {
	return &lcpPolicy{sess: sess}
}

func (p *lcpPolicy) tryServerReject(msg *pppFrame) ([]pppOption, bool) {
	var unknown []pppOption
	for _, o := range msg.options {
		if o.Type != lcpOptMRU && o.Type != lcpOptAuthProto && o.Type != lcpOptMagic {
			unknown = append(unknown, o)
		}
	}
	return unknown, len(unknown) > 0
}

func (p *lcpPolicy) tryServerNak(msg *pppFrame) ([]pppOption, bool) {
	var nak []pppOption

	if mru := findOption(msg.options, lcpOptMRU); mru != nil {
		proposed := binary.BigEndian.Uint16(mru.Value)
		if proposed < p.sess.config.PPP.MTU {
			val := make([]byte, 2)
			binary.BigEndian.PutUint16(val, p.sess.config.PPP.MTU)
			nak = append(nak, pppOption{Type: lcpOptMRU, Value: val})
		}
	}

	if auth := findOption(msg.options, lcpOptAuthProto); auth != nil {
		if !p.authProtoAcceptable(auth.Value) {
			preferred, ok := preferredAuthProtocol(p.sess.config.PPP.AuthProtocols)
			if ok {
				opt := authOptionFor(preferred)
				nak = append(nak, opt)
				p.setCurrentAuthFromOption(opt.Value)
			}
		}
	}

	return nak, len(nak) > 0
}

// authProtoAcceptable reports whether the server's proposed auth-protocol
// option (in a Configure-Request) is one this client has enabled.
func (p *lcpPolicy) authProtoAcceptable(value []byte) bool {
	if len(value) < 2 {
		return false
	}
	proto := pppProtocol(binary.BigEndian.Uint16(value[0:2]))
	switch proto {
	case pppProtocolPAP:
		return hasAuthProto(p.sess.config.PPP.AuthProtocols, AuthProtocolPAP)
	case pppProtocolCHAP:
		if len(value) < 3 || value[2] != chapAlgorithmMSCHAPv2 {
			return false
		}
		return hasAuthProto(p.sess.config.PPP.AuthProtocols, AuthProtocolMSCHAPv2)
	case pppProtocolEAP:
		return hasAuthProto(p.sess.config.PPP.AuthProtocols, AuthProtocolEAPMSCHAPv2)
	}
	return false
}

func hasAuthProto(protos []AuthProtocol, want AuthProtocol) bool {
	for _, p := range protos {
		if p == want {
			return true
		}
	}
	return false
}

func authOptionFor(proto AuthProtocol) pppOption {
	switch proto {
	case AuthProtocolPAP:
		val := make([]byte, 2)
		binary.BigEndian.PutUint16(val, uint16(pppProtocolPAP))
		return pppOption{Type: lcpOptAuthProto, Value: val}
	case AuthProtocolMSCHAPv2:
		val := make([]byte, 3)
		binary.BigEndian.PutUint16(val[0:2], uint16(pppProtocolCHAP))
		val[2] = chapAlgorithmMSCHAPv2
		return pppOption{Type: lcpOptAuthProto, Value: val}
	case AuthProtocolEAPMSCHAPv2:
		val := make([]byte, 2)
		binary.BigEndian.PutUint16(val, uint16(pppProtocolEAP))
		return pppOption{Type: lcpOptAuthProto, Value: val}
	}
	return pppOption{}
}

func (p *lcpPolicy) createServerAck(msg *pppFrame) []pppOption {
	if auth := findOption(msg.options, lcpOptAuthProto); auth != nil {
		p.setCurrentAuthFromOption(auth.Value)
	}
	return msg.options
}

func (p *lcpPolicy) createClientRequest() []pppOption {
	var opts []pppOption
	if !p.mruRejected {
		val := make([]byte, 2)
		binary.BigEndian.PutUint16(val, p.sess.negotiated.currentMRU)
		opts = append(opts, pppOption{Type: lcpOptMRU, Value: val})
	}
	return opts
}

func (p *lcpPolicy) acceptClientNak(nak []pppOption) error {
	if mru := findOption(nak, lcpOptMRU); mru != nil {
		proposed := binary.BigEndian.Uint16(mru.Value)
		clamped := proposed
		if clamped < minMRU {
			clamped = minMRU
		}
		if clamped > p.sess.config.PPP.MRU {
			clamped = p.sess.config.PPP.MRU
		}
		p.sess.negotiated.currentMRU = clamped
	}
	if auth := findOption(nak, lcpOptAuthProto); auth != nil {
		p.applyAuthNak(auth.Value)
	}
	return nil
}

func (p *lcpPolicy) applyAuthNak(value []byte) {
	p.setCurrentAuthFromOption(value)
}

// setCurrentAuthFromOption records the auth protocol carried by an
// lcpOptAuthProto option value as the one the authentication phase should
// use, whether it came from the server Nak'ing the client's own proposal
// or from the server's own Configure-Request being Nak'd or Ack'd.
func (p *lcpPolicy) setCurrentAuthFromOption(value []byte) {
	if len(value) < 2 {
		return
	}
	proto := pppProtocol(binary.BigEndian.Uint16(value[0:2]))
	switch proto {
	case pppProtocolPAP:
		p.sess.negotiated.currentAuth = AuthProtocolPAP
	case pppProtocolCHAP:
		p.sess.negotiated.currentAuth = AuthProtocolMSCHAPv2
	case pppProtocolEAP:
		p.sess.negotiated.currentAuth = AuthProtocolEAPMSCHAPv2
	}
}

func (p *lcpPolicy) acceptClientReject(rejected []pppOption) error {
	if findOption(rejected, lcpOptMRU) != nil {
		p.mruRejected = true
		if defaultMRU > p.sess.config.PPP.MTU {
			return newPolicyError(WhereLCPMRU, ErrOptionRejected, "MRU rejected and default MRU exceeds configured MTU")
		}
	}
	if findOption(rejected, lcpOptAuthProto) != nil {
		p.authRejected = true
		return newPolicyError(WhereLCPAuth, ErrOptionRejected, "auth protocol option rejected by peer")
	}
	return nil
}
