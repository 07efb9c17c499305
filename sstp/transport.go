package sstp

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// sstpUpgradeURL is the fixed SSTP resource path every server implements.
const sstpUpgradeURL = "/sra_{BA195980-CD49-458b-9E23-C84EE0ADCD75}/"

// postHandshakeReadTimeout is the read deadline applied once the
// SSTP_DUPLEX_POST upgrade completes; timeouts past this point are
// non-fatal and tolerated by the incoming demultiplexer.
const postHandshakeReadTimeout = 1 * time.Second

// transport owns the single TCP/TLS connection for a tunnel attempt. Sends
// are serialised under sendMu so that one SSTP packet's bytes never
// interleave with another's on the wire (§5, "Ordering guarantees").
type transport struct {
	logger log.Logger
	conn   net.Conn

	sendMu sync.Mutex
}

// dialResult is returned by dial: either a ready transport, or a Where/Result
// pair describing why the attempt failed before any PPP state existed.
// leafDER carries the peer's leaf certificate when a TLS verification
// failure means dial never got far enough to establish a transport.
type dialResult struct {
	xport   *transport
	where   Where
	result  Result
	err     error
	leafDER []byte
}

func tlsMinMaxVersion(v SSLVersion) (min, max uint16) {
	switch v {
	case SSLVersionTLS10:
		return tls.VersionTLS10, tls.VersionTLS10
	case SSLVersionTLS11:
		return tls.VersionTLS11, tls.VersionTLS11
	case SSLVersionTLS12:
		return tls.VersionTLS12, tls.VersionTLS12
	case SSLVersionTLS13:
		return tls.VersionTLS13, tls.VersionTLS13
	}
	return 0, 0
}

// dial performs phase 1 in full: TCP dial (optionally via an HTTP CONNECT
// proxy), TLS handshake, and the SSTP_DUPLEX_POST upgrade (§4.2).
func dial(cfg *Config, trust TrustStore, guid string, logger log.Logger) dialResult {
	var conn net.Conn
	var err error

	target := net.JoinHostPort(cfg.Hostname, strconv.Itoa(int(cfg.Port)))

	if cfg.Proxy != nil {
		proxyAddr := net.JoinHostPort(cfg.Proxy.Host, strconv.Itoa(int(cfg.Proxy.Port)))
		conn, err = net.DialTimeout("tcp", proxyAddr, phaseTimeout)
		if err != nil {
			return dialResult{where: WhereProxy, result: ErrUnexpectedMessage, err: err}
		}
		if err := connectThroughProxy(conn, cfg, target); err != nil {
			conn.Close()
			if pe, ok := err.(*proxyAuthError); ok {
				return dialResult{where: WhereProxy, result: ErrAuthenticationFailed, err: pe}
			}
			return dialResult{where: WhereProxy, result: ErrUnexpectedMessage, err: err}
		}
	} else {
		conn, err = net.DialTimeout("tcp", target, phaseTimeout)
		if err != nil {
			return dialResult{where: WhereTLS, result: ErrUnexpectedMessage, err: err}
		}
	}

	tlsConn, tlsErr := upgradeTLS(conn, cfg, trust, logger)
	if tlsErr != nil {
		conn.Close()
		return dialResult{where: WhereTLS, result: tlsErr.result, err: tlsErr.err, leafDER: tlsErr.leafDER}
	}

	xport := &transport{logger: logger, conn: tlsConn}
	if err := xport.sstpUpgrade(cfg.Hostname, guid); err != nil {
		tlsConn.Close()
		return dialResult{where: WhereTLS, result: ErrUnexpectedMessage, err: err}
	}

	return dialResult{xport: xport, result: Proceeded}
}

type proxyAuthError struct{ status string }

func (e *proxyAuthError) Error() string { return "proxy rejected CONNECT: " + e.status }

// connectThroughProxy sends the literal CONNECT request from §4.2 and
// reads the response status line.
func connectThroughProxy(conn net.Conn, cfg *Config, target string) error {
	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\nSSTPVERSION: 1.0\r\n", target, target)
	if cfg.Proxy.User != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(cfg.Proxy.User + ":" + cfg.Proxy.Password))
		req += "Proxy-Authorization: Basic " + cred + "\r\n"
	}
	req += "\r\n"

	if _, err := conn.Write([]byte(req)); err != nil {
		return err
	}

	status, err := readHTTPStatusLine(conn)
	if err != nil {
		return err
	}
	switch status {
	case 200:
		return nil
	case 403:
		return &proxyAuthError{status: "403"}
	default:
		return fmt.Errorf("unexpected proxy CONNECT status %d", status)
	}
}

// readHTTPStatusLine reads bytes up to and including the blank-line
// terminator and returns the numeric status from the first line.
func readHTTPStatusLine(conn net.Conn) (int, error) {
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	for {
		l, err := r.ReadString('\n')
		if err != nil {
			return 0, err
		}
		if strings.TrimRight(l, "\r\n") == "" {
			break
		}
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed status line %q", line)
	}
	status, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed status code %q", fields[1])
	}
	return status, nil
}

// tlsSetupError carries the leaf certificate alongside a failure, so the
// caller can surface the untrusted cert to the Reporter (§4.2) without
// re-dialing.
type tlsSetupError struct {
	result  Result
	err     error
	leafDER []byte
}

// upgradeTLS performs the TLS client handshake per §4.2's option set.
func upgradeTLS(conn net.Conn, cfg *Config, trust TrustStore, logger log.Logger) (net.Conn, *tlsSetupError) {
	tlsCfg := &tls.Config{
		ServerName: cfg.Hostname,
	}
	if cfg.TLS.DoUseCustomSNI {
		tlsCfg.ServerName = cfg.TLS.CustomSNI
	}
	if !cfg.TLS.DoVerifyHost {
		tlsCfg.InsecureSkipVerify = true
	}
	if cfg.TLS.Version != SSLVersionDefault {
		min, max := tlsMinMaxVersion(cfg.TLS.Version)
		tlsCfg.MinVersion, tlsCfg.MaxVersion = min, max
	}
	if cfg.TLS.DoSelectSuites && len(cfg.TLS.Suites) > 0 {
		tlsCfg.CipherSuites = cfg.TLS.Suites
	}
	if cfg.TLS.DoSpecifyTrust {
		pool := x509.NewCertPool()
		pems, err := trust.ListCACerts()
		if err != nil {
			return nil, &tlsSetupError{result: ErrParsingFailed, err: err}
		}
		for _, pem := range pems {
			pool.AppendCertsFromPEM(pem)
		}
		tlsCfg.RootCAs = pool
	}

	tlsConn := tls.Client(conn, tlsCfg)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return nil, &tlsSetupError{result: ErrVerificationFailed, err: err, leafDER: peerLeafDER(tlsConn)}
	}

	if cfg.TLS.DoVerifyHost {
		state := tlsConn.ConnectionState()
		if len(state.PeerCertificates) > 0 {
			if err := state.PeerCertificates[0].VerifyHostname(cfg.Hostname); err != nil {
				return nil, &tlsSetupError{result: ErrVerificationFailed, err: err, leafDER: state.PeerCertificates[0].Raw}
			}
		}
	}

	level.Debug(logger).Log("msg", "TLS handshake complete", "server", cfg.Hostname)
	return tlsConn, nil
}

// leafCertificate returns the peer's leaf certificate for crypto-binding
// and for surfacing to the Reporter on a verification failure.
func leafCertificate(conn net.Conn) *x509.Certificate {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil
	}
	return certs[0]
}

// peerLeafDER returns the peer's leaf certificate bytes, if the handshake
// got far enough to receive one: the certificate message is parsed (and
// peerCertificates populated) before chain verification runs, so this is
// available even when HandshakeContext itself returns an error.
func peerLeafDER(conn *tls.Conn) []byte {
	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil
	}
	return certs[0].Raw
}

// sstpUpgrade sends the SSTP_DUPLEX_POST HTTP request and reads the
// response status line, per §4.2.
func (x *transport) sstpUpgrade(hostname, guid string) error {
	req := fmt.Sprintf(
		"SSTP_DUPLEX_POST %s HTTP/1.1\r\nContent-Length: 18446744073709551615\r\nHost: %s\r\nSSTPCORRELATIONID: {%s}\r\n\r\n",
		sstpUpgradeURL, hostname, guid)

	if err := x.send([]byte(req)); err != nil {
		return err
	}

	status, err := readHTTPStatusLine(x.conn)
	if err != nil {
		return err
	}
	if status != 200 {
		return fmt.Errorf("unexpected SSTP upgrade status %d", status)
	}
	return nil
}

// send writes b to the connection under the send mutex, so a complete SSTP
// packet is never interleaved with another's bytes (§4.2, §5).
func (x *transport) send(b []byte) error {
	x.sendMu.Lock()
	defer x.sendMu.Unlock()
	_, err := x.conn.Write(b)
	return err
}

// receive reads into buf, returning however many bytes are immediately
// available. The read deadline is reset on every call to the fixed
// post-handshake interval, so a timeout (reported back to the caller as
// (0, err)) only ever means "no data this iteration", not "no data ever
// again" -- a deadline that is only set once stays expired forever.
func (x *transport) receive(buf []byte) (int, error) {
	if err := x.conn.SetReadDeadline(time.Now().Add(postHandshakeReadTimeout)); err != nil {
		return 0, err
	}
	return x.conn.Read(buf)
}

func (x *transport) close() error {
	return x.conn.Close()
}
