/*
Package sstp implements the client side of the Secure Socket Tunneling
Protocol (SSTP): a TLS tunnel carrying a negotiated PPP session (LCP,
PAP/MS-CHAPv2/EAP-MSCHAPv2, IPCP, IPv6CP) between this host and a
remote SSTP server.

The package is organised the way the protocol layers stack:

	transport   -- TCP + optional HTTP CONNECT proxy + TLS + SSTP_DUPLEX_POST
	pdu         -- byte-exact SSTP packet / attribute codec
	pppcodec    -- byte-exact PPP frame / option codec
	negotiator  -- generic Configure-Request/Ack/Nak/Reject state machine
	lcp/ipcp/ipv6cp -- per-protocol negotiation policy
	auth_*      -- PAP / MS-CHAPv2 / EAP-MSCHAPv2 authenticators
	sstpcontrol -- SSTP Call-Connect / Echo / Abort / Disconnect handling
	engine      -- orchestrates the above into a single tunnel attempt

A tunnel attempt is started with Run, which blocks until the attempt
terminates (successfully torn down by the peer, or for any of the
Result error conditions documented in errors.go) and is driven entirely
by the external collaborators passed to it: a TunDevice for the local
virtual network interface, a TrustStore for custom certificate trust,
and a Reporter for host notifications.

Run does not retry. Reconnection policy (whether and how often to call
Run again after a failed attempt) is the caller's responsibility -- see
cmd/sstpc for a host-level reconnection loop built on top of Run.
*/
package sstp
