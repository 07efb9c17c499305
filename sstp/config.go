package sstp

import "time"

// SSLVersion restricts the TLS protocol versions the transport will
// negotiate.
type SSLVersion int

const (
	SSLVersionDefault SSLVersion = iota
	SSLVersionTLS10
	SSLVersionTLS11
	SSLVersionTLS12
	SSLVersionTLS13
)

// ProxyConfig describes an optional HTTP CONNECT proxy the transport must
// tunnel through before starting the TLS handshake.
type ProxyConfig struct {
	Host     string
	Port     uint16
	User     string
	Password string
}

// TLSConfig groups the transport's certificate-trust and protocol options.
type TLSConfig struct {
	Version        SSLVersion
	DoVerifyHost   bool
	DoSpecifyTrust bool
	CertDir        string
	DoSelectSuites bool
	Suites         []uint16
	DoUseCustomSNI bool
	CustomSNI      string
}

// PPPConfig groups link/auth/network options passed to the PPP negotiators
// and authenticator.
type PPPConfig struct {
	MRU                 uint16
	MTU                 uint16
	AuthProtocols       []AuthProtocol
	AuthTimeout         time.Duration
	IPv4Enabled         bool
	IPv6Enabled         bool
	DoRequestStaticIPv4 bool
	StaticIPv4Address   [4]byte
}

// DNSConfig groups DNS negotiation options.
type DNSConfig struct {
	DoRequestAddress  bool
	DoUseCustomServer bool
	CustomAddress     [4]byte
}

// RouteConfig groups routing options applied to the TunDevice at phase 6.
type RouteConfig struct {
	AddDefaultRoute       bool
	RoutePrivateAddresses bool
	AddCustomRoutes       bool
	CustomRoutes          []string
	EnableAppBasedRule    bool
	AllowedApplications   []string
}

// ReconnectConfig groups host-level reconnection policy; the Engine itself
// never reads these fields (see Run's doc comment).
type ReconnectConfig struct {
	Enabled  bool
	Count    int
	Interval time.Duration
}

// Config is the immutable configuration for a single tunnel attempt.
type Config struct {
	Hostname string
	Port     uint16
	Username string
	Password string

	Proxy *ProxyConfig

	TLS       TLSConfig
	PPP       PPPConfig
	DNS       DNSConfig
	Route     RouteConfig
	Reconnect ReconnectConfig
}

// DefaultConfig returns a Config with the spec's documented defaults
// applied; callers (or the config loader) fill in the mandatory fields.
func DefaultConfig() *Config {
	return &Config{
		Port: 443,
		TLS: TLSConfig{
			Version:      SSLVersionDefault,
			DoVerifyHost: true,
		},
		PPP: PPPConfig{
			MRU:         defaultMRU,
			MTU:         defaultMRU,
			AuthTimeout: 30 * time.Second,
			IPv4Enabled: true,
		},
		Route: RouteConfig{
			AddDefaultRoute:       true,
			RoutePrivateAddresses: true,
		},
		Reconnect: ReconnectConfig{
			Enabled:  true,
			Count:    3,
			Interval: 10 * time.Second,
		},
	}
}

// Validate checks the cross-field invariants from §6's configuration
// surface that aren't enforced by the type system alone.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return newParseError("config", "hostname must not be empty")
	}
	if len(c.PPP.AuthProtocols) == 0 {
		return newParseError("config", "at least one auth protocol must be enabled")
	}
	if !c.PPP.IPv4Enabled && !c.PPP.IPv6Enabled {
		return newParseError("config", "at least one of IPv4/IPv6 must be enabled")
	}
	if c.PPP.MRU < minMRU || c.PPP.MRU > maxMRU {
		return newParseError("config", "MRU %d out of range [%d, %d]", c.PPP.MRU, minMRU, maxMRU)
	}
	if c.PPP.MTU < minMRU || c.PPP.MTU > maxMRU {
		return newParseError("config", "MTU %d out of range [%d, %d]", c.PPP.MTU, minMRU, maxMRU)
	}
	if c.Reconnect.Enabled && c.Reconnect.Count < 1 {
		return newParseError("config", "reconnection count must be >= 1 when enabled")
	}
	return nil
}

// preferredAuthProtocol returns the first of the strict priority order
// EAP-MSCHAPv2 > MSCHAPv2 > PAP that is present in protos. The ordering is
// fixed regardless of which protocols the caller listed first -- this
// mirrors the LCP auth-Nak branch's behaviour exactly (see the negotiator).
func preferredAuthProtocol(protos []AuthProtocol) (AuthProtocol, bool) {
	has := func(want AuthProtocol) bool {
		for _, p := range protos {
			if p == want {
				return true
			}
		}
		return false
	}
	switch {
	case has(AuthProtocolEAPMSCHAPv2):
		return AuthProtocolEAPMSCHAPv2, true
	case has(AuthProtocolMSCHAPv2):
		return AuthProtocolMSCHAPv2, true
	case has(AuthProtocolPAP):
		return AuthProtocolPAP, true
	}
	return AuthProtocolNone, false
}
