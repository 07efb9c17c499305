package sstp

import (
	"encoding/base64"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Outcome is the terminal result of a Run call, published for the host to
// consume.
type Outcome struct {
	Where  Where
	Result Result
	Err    error
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s", o.Where, o.Result)
}

// Run drives one complete tunnel attempt through the phase ordering in
// §4.9: TLS, SSTP request, LCP, authentication, IPCP/IPv6CP, tun setup,
// Call-Connected, then the packet pumps, blocking until the attempt
// terminates for any reason.
//
// Run does not retry. Reconnection policy (whether and how often to call
// Run again after a failed attempt) is the caller's responsibility -- see
// cmd/sstpc for a host-level reconnection loop built on top of Run.
func Run(cfg *Config, tun TunDevice, trust TrustStore, reporter Reporter, logger log.Logger) Outcome {
	if err := cfg.Validate(); err != nil {
		return Outcome{Where: WhereEngine, Result: ErrParsingFailed, Err: err}
	}

	sess := newSession(cfg, logger)

	// Phase 1: TLS transport.
	dr := dial(cfg, trust, sess.negotiated.guid, logger)
	if dr.result != Proceeded {
		if dr.result == ErrVerificationFailed && reporter != nil {
			reporter.Notify(ReportChannelCertificate, "certificate verification failed", base64.StdEncoding.EncodeToString(dr.leafDER))
		}
		return Outcome{Where: dr.where, Result: dr.result, Err: dr.err}
	}
	sess.transport = dr.xport
	defer sess.transport.close()

	sstpTimer := newEchoTimer(echoInterval, func() { sstpEcho(sess) })
	pppTimer := newEchoTimer(echoInterval, func() { lcpEcho(sess) })
	demux := newDemultiplexer(sess, sess.transport, nil, sstpTimer, pppTimer)

	demuxDone := make(chan struct{})
	var demuxOutcome Outcome
	go func() {
		where, result, err := demux.run()
		demuxOutcome = Outcome{Where: where, Result: result, Err: err}
		close(demuxDone)
	}()

	outcome := runPhases(sess, cfg, tun, reporter, logger, demux, demuxDone, &demuxOutcome)

	if outcome.Result != Proceeded {
		teardown(sess, logger)
	}

	return outcome
}

// runPhases sequences phases 2 through 8. It returns as soon as any phase
// fails, or once the packet pumps are established (at which point it
// blocks until the demultiplexer, a control task, the outgoing multiplexer
// or the controlMessages queue reports a terminal condition).
func runPhases(sess *session, cfg *Config, tun TunDevice, reporter Reporter, logger log.Logger, demux *demultiplexer, demuxDone <-chan struct{}, demuxOutcome *Outcome) Outcome {
	// Phase 2: SSTP Call-Connect-Request.
	if o, ok := awaitPhase(func(done chan<- negotiatorResult) { runSSTPRequest(sess, done) }, demuxDone, demuxOutcome); !ok {
		return o
	}

	// Phase 3: LCP negotiation.
	lcpPolicy := newLCPPolicy(sess)
	if o, ok := awaitPhase(func(done chan<- negotiatorResult) {
		runNegotiator(sess, WhereLCP, pppProtocolLCP, sess.mailboxes.lcp, lcpPolicy, done)
	}, demuxDone, demuxOutcome); !ok {
		return o
	}

	// Phase 4: authentication.
	if o, ok := awaitPhase(func(done chan<- negotiatorResult) {
		runAuthenticator(sess, done)
	}, demuxDone, demuxOutcome); !ok {
		return o
	}

	// Phase 5: IPCP and/or IPv6CP, in parallel.
	if o, ok := awaitNetworkPhase(sess, demuxDone, demuxOutcome); !ok {
		return o
	}

	// Phase 6: tun setup.
	if err := setupTun(sess, tun); err != nil {
		return Outcome{Where: whereOf(err, WhereTun), Result: errKindOf(err), Err: err}
	}

	// Phase 7: Call-Connected, then start SSTP-control and PPP-control.
	leafDER := []byte(nil)
	if cert := leafCertificate(sess.transport.conn); cert != nil {
		leafDER = cert.Raw
	}
	connected, err := buildCallConnected(sess, leafDER)
	if err != nil {
		return Outcome{Where: WhereSSTPControl, Result: ErrParsingFailed, Err: err}
	}
	if err := sess.transport.send(connected); err != nil {
		return Outcome{Where: WhereSSTPControl, Result: ErrUnexpectedMessage, Err: err}
	}

	controlDone := make(chan negotiatorResult, 2)
	go runSSTPControl(sess, controlDone)
	go runPPPControl(sess, sess.mailboxes.pppCtl, controlDone)

	// Phase 8: packet pumps. The demux is already running; start the
	// outgoing multiplexer now that the tun device is established.
	tunReader, tunWriter, err := tun.Establish()
	if err != nil {
		return Outcome{Where: WhereTun, Result: ErrInvalidAddress, Err: err}
	}
	demux.setTunWriter(tunWriter)

	outMux := newOutgoingMux(sess, tunReader)
	outMuxDone := make(chan error, 1)
	go func() { outMuxDone <- outMux.run() }()

	level.Info(logger).Log("msg", "tunnel established", "hostname", cfg.Hostname)

	select {
	case <-demuxDone:
		return *demuxOutcome
	case r := <-controlDone:
		return Outcome{Where: r.where, Result: r.result, Err: r.err}
	case err := <-outMuxDone:
		return Outcome{Where: WhereTun, Result: ErrUnexpectedMessage, Err: err}
	case m := <-sess.mailboxes.controlMessages:
		return Outcome{Where: m.Where, Result: m.Result, Err: m.Err}
	}
}

// awaitPhase runs a single-task phase to completion, also watching for the
// demultiplexer reporting a terminal condition concurrently (e.g. an echo
// timeout during LCP negotiation).
func awaitPhase(start func(done chan<- negotiatorResult), demuxDone <-chan struct{}, demuxOutcome *Outcome) (Outcome, bool) {
	done := make(chan negotiatorResult, 1)
	start(done)
	select {
	case r := <-done:
		if r.result != Proceeded {
			return Outcome{Where: r.where, Result: r.result, Err: r.err}, false
		}
		return Outcome{}, true
	case <-demuxDone:
		return *demuxOutcome, false
	}
}

// awaitNetworkPhase runs IPCP and/or IPv6CP in parallel, per §4.9 phase 5;
// both enabled protocols must PROCEED.
func awaitNetworkPhase(sess *session, demuxDone <-chan struct{}, demuxOutcome *Outcome) (Outcome, bool) {
	var pending int
	done := make(chan negotiatorResult, 2)

	if sess.config.PPP.IPv4Enabled {
		pending++
		go runNegotiator(sess, WhereIPCP, pppProtocolIPCP, sess.mailboxes.ipcp, newIPCPPolicy(sess), done)
	}
	if sess.config.PPP.IPv6Enabled {
		pending++
		go runNegotiator(sess, WhereIPv6CP, pppProtocolIPv6CP, sess.mailboxes.ipv6cp, newIPv6CPPolicy(sess), done)
	}

	for pending > 0 {
		select {
		case r := <-done:
			if r.result != Proceeded {
				return Outcome{Where: r.where, Result: r.result, Err: r.err}, false
			}
			pending--
		case <-demuxDone:
			return *demuxOutcome, false
		}
	}
	return Outcome{}, true
}

// runAuthenticator dispatches to the authenticator matching currentAuth,
// which LCP's auth-Nak branch already fixed during phase 3.
func runAuthenticator(sess *session, done chan<- negotiatorResult) {
	switch sess.negotiated.currentAuth {
	case AuthProtocolPAP:
		runPAP(sess, sess.mailboxes.pap, done)
	case AuthProtocolMSCHAPv2:
		runMSCHAPv2(sess, sess.mailboxes.chap, done)
	case AuthProtocolEAPMSCHAPv2:
		runEAPMSCHAPv2(sess, sess.mailboxes.eap, done)
	default:
		done <- negotiatorResult{where: WhereAuth, result: ErrAuthenticationFailed, err: fmt.Errorf("no auth protocol negotiated")}
	}
}

// setupTun configures the tun device per §6: addresses, DNS, routes,
// per-app rules and MTU, ahead of Establish (called separately once
// Call-Connected has been sent, per §4.9 phase ordering).
func setupTun(sess *session, tun TunDevice) error {
	cfg := sess.config
	neg := sess.negotiated

	if cfg.PPP.IPv4Enabled {
		if allZero(neg.currentIPv4[:]) {
			return newPolicyError(WhereTun, ErrInvalidAddress, "no IPv4 address negotiated")
		}
		if err := tun.AddAddress(neg.currentIPv4, 32); err != nil {
			return err
		}
	}
	if cfg.PPP.IPv6Enabled {
		if allZero(neg.currentIPv6[:]) {
			return newPolicyError(WhereTun, ErrInvalidAddress, "no IPv6 interface identifier negotiated")
		}
		var addr [16]byte
		copy(addr[8:], neg.currentIPv6[:])
		if err := tun.AddAddressV6(addr, 64); err != nil {
			return err
		}
	}

	if cfg.DNS.DoRequestAddress && !neg.isDNSRejected {
		if err := tun.AddDNSServer(neg.currentProposedDNS); err != nil {
			return err
		}
	}
	if cfg.DNS.DoUseCustomServer {
		if err := tun.AddDNSServer(cfg.DNS.CustomAddress); err != nil {
			return err
		}
	}

	if cfg.Route.AddDefaultRoute {
		if cfg.PPP.IPv4Enabled {
			if err := tun.AddRoute("0.0.0.0/0"); err != nil {
				return err
			}
		}
		if cfg.PPP.IPv6Enabled {
			if err := tun.AddRoute("::/0"); err != nil {
				return err
			}
		}
	}
	if cfg.Route.RoutePrivateAddresses {
		for _, cidr := range privateRanges(cfg) {
			if err := tun.AddRoute(cidr); err != nil {
				return err
			}
		}
	}
	if cfg.Route.AddCustomRoutes {
		for _, cidr := range cfg.Route.CustomRoutes {
			if err := tun.AddRoute(cidr); err != nil {
				return newPolicyError(WhereRoute, ErrParsingFailed, fmt.Sprintf("invalid custom route %q: %v", cidr, err))
			}
		}
	}
	if cfg.Route.EnableAppBasedRule {
		for _, id := range cfg.Route.AllowedApplications {
			if err := tun.AddAllowedApplication(id); err != nil {
				return err
			}
		}
	}

	return tun.SetMTU(int(cfg.PPP.MTU))
}

func privateRanges(cfg *Config) []string {
	var ranges []string
	if cfg.PPP.IPv4Enabled {
		ranges = append(ranges, "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16")
	}
	if cfg.PPP.IPv6Enabled {
		ranges = append(ranges, "fc00::/7")
	}
	return ranges
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// errKindOf maps a generic tun-setup error back to the closest Result;
// policyErrors carry their own.
func errKindOf(err error) Result {
	return resultOf(err)
}

// teardown implements §4.9's failure path: best-effort Call-Disconnect
// then Call-Abort, then close the transport. The tun device's lifetime is
// owned by the caller of Run.
func teardown(sess *session, logger log.Logger) {
	if sess.transport == nil {
		return
	}
	disc := newSstpControlMessage(sstpMsgTypeCallDisconnect, nil)
	if b, err := disc.toBytes(); err == nil {
		_ = sess.transport.send(b)
	}
	abort := newSstpControlMessage(sstpMsgTypeCallAbort, nil)
	if b, err := abort.toBytes(); err == nil {
		_ = sess.transport.send(b)
	}
	level.Debug(logger).Log("msg", "tunnel torn down")
}
