package sstp

// ipv6cpPolicy implements negotiatorPolicy for IPv6 Control Protocol, per
// §4.5's IPv6CP policies.
type ipv6cpPolicy struct {
	sess *session
}

func newIPv6CPPolicy(sess *session) *ipv6cpPolicy {
	return &ipv6cpPolicy{sess: sess}
}

func (p *ipv6cpPolicy) tryServerReject(msg *pppFrame) ([]pppOption, bool) {
	var unknown []pppOption
	for _, o := range msg.options {
		if o.Type != ipv6cpOptInterfaceIdentifier {
			unknown = append(unknown, o)
		}
	}
	return unknown, len(unknown) > 0
}

func (p *ipv6cpPolicy) tryServerNak(msg *pppFrame) ([]pppOption, bool) {
	return nil, false
}

func (p *ipv6cpPolicy) createServerAck(msg *pppFrame) []pppOption {
	return msg.options
}

func (p *ipv6cpPolicy) createClientRequest() []pppOption {
	return []pppOption{
		{Type: ipv6cpOptInterfaceIdentifier, Value: append([]byte(nil), p.sess.negotiated.currentIPv6[:]...)},
	}
}

func (p *ipv6cpPolicy) acceptClientNak(nak []pppOption) error {
	if id := findOption(nak, ipv6cpOptInterfaceIdentifier); id != nil {
		copy(p.sess.negotiated.currentIPv6[:], id.Value)
	}
	return nil
}

func (p *ipv6cpPolicy) acceptClientReject(rejected []pppOption) error {
	if findOption(rejected, ipv6cpOptInterfaceIdentifier) != nil {
		return newPolicyError(WhereIPv6CPID, ErrOptionRejected, "interface identifier option rejected by peer")
	}
	return nil
}
