package sstp

// ipcpPolicy implements negotiatorPolicy for IP Control Protocol, per
// §4.5's IPCP policies.
type ipcpPolicy struct {
	sess *session

	ipRejected bool
}

func newIPCPPolicy(sess *session) *ipcpPolicy {
	return &ipcpPolicy{sess: sess}
}

func (p *ipcpPolicy) tryServerReject(msg *pppFrame) ([]pppOption, bool) {
	var unknown []pppOption
	for _, o := range msg.options {
		if o.Type != ipcpOptIPAddress && o.Type != ipcpOptDNS {
			unknown = append(unknown, o)
			continue
		}
		if o.Type == ipcpOptDNS {
			// the client never serves DNS: always reject a server-proposed
			// DNS option in a Configure-Request.
			unknown = append(unknown, o)
		}
	}
	return unknown, len(unknown) > 0
}

func (p *ipcpPolicy) tryServerNak(msg *pppFrame) ([]pppOption, bool) {
	// IPCP never Naks an incoming server Configure-Request.
	return nil, false
}

func (p *ipcpPolicy) createServerAck(msg *pppFrame) []pppOption {
	return msg.options
}

func (p *ipcpPolicy) createClientRequest() []pppOption {
	opts := []pppOption{
		{Type: ipcpOptIPAddress, Value: append([]byte(nil), p.sess.negotiated.currentIPv4[:]...)},
	}
	if p.sess.config.DNS.DoRequestAddress && !p.sess.negotiated.isDNSRejected {
		opts = append(opts, pppOption{Type: ipcpOptDNS, Value: append([]byte(nil), p.sess.negotiated.currentProposedDNS[:]...)})
	}
	return opts
}

func (p *ipcpPolicy) acceptClientNak(nak []pppOption) error {
	if ip := findOption(nak, ipcpOptIPAddress); ip != nil {
		if p.sess.config.PPP.DoRequestStaticIPv4 {
			return newPolicyError(WhereIPCP, ErrAddressRejected, "static IPv4 address rejected by peer")
		}
		copy(p.sess.negotiated.currentIPv4[:], ip.Value)
	}
	if dns := findOption(nak, ipcpOptDNS); dns != nil {
		// Preserves the source's unvalidated-copy behaviour exactly: the
		// peer's proposed DNS address is adopted without any sanity check.
		copy(p.sess.negotiated.currentProposedDNS[:], dns.Value)
	}
	return nil
}

func (p *ipcpPolicy) acceptClientReject(rejected []pppOption) error {
	if findOption(rejected, ipcpOptIPAddress) != nil {
		p.ipRejected = true
		return newPolicyError(WhereIPCPIP, ErrOptionRejected, "IPv4 address option rejected by peer")
	}
	if findOption(rejected, ipcpOptDNS) != nil {
		p.sess.negotiated.isDNSRejected = true
	}
	return nil
}
