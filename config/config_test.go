package config

import (
	"testing"
	"time"

	"github.com/katalix/go-sstp/sstp"
)

func TestLoadStringMinimal(t *testing.T) {
	in := `[tunnel]
	hostname = "vpn.example.com"
	username = "alice"
	password = "hunter2"

	[tunnel.ppp]
	auth_protocols = ["pap"]
	`
	cfg, err := LoadString(in)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if cfg.Hostname != "vpn.example.com" {
		t.Errorf("hostname: got %q", cfg.Hostname)
	}
	if cfg.Port != 443 {
		t.Errorf("port: expected default 443, got %d", cfg.Port)
	}
	if !cfg.PPP.IPv4Enabled {
		t.Errorf("expected IPv4 enabled by default")
	}
}

func TestLoadStringFull(t *testing.T) {
	in := `[tunnel]
	hostname = "vpn.example.com"
	port = 1443
	username = "alice"
	password = "hunter2"

	[tunnel.proxy]
	host = "proxy.example.com"
	port = 8080
	user = "proxyuser"
	password = "proxypass"

	[tunnel.tls]
	ssl_version = "tls1.2"
	verify_host = true
	cert_dir = "/etc/sstpc/certs"
	sni = "vpn.example.com"

	[tunnel.ppp]
	mru = 1400
	mtu = 1400
	auth_protocols = ["eap-mschapv2", "mschapv2"]
	auth_timeout = 15000
	ipv4 = true
	ipv6 = true
	static_ipv4_address = [10, 0, 0, 2]

	[tunnel.dns]
	request_address = true
	custom_server = [8, 8, 8, 8]

	[tunnel.route]
	add_default_route = true
	route_private_addresses = false
	custom_routes = ["192.168.50.0/24"]
	allowed_applications = ["com.example.app"]

	[tunnel.reconnect]
	enabled = true
	count = 5
	interval = 20000
	`
	cfg, err := LoadString(in)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}

	if cfg.Hostname != "vpn.example.com" || cfg.Port != 1443 {
		t.Errorf("unexpected top level: %+v", cfg)
	}
	if cfg.Proxy == nil || cfg.Proxy.Host != "proxy.example.com" || cfg.Proxy.Port != 8080 {
		t.Errorf("unexpected proxy: %+v", cfg.Proxy)
	}
	if cfg.TLS.Version != sstp.SSLVersionTLS12 || !cfg.TLS.DoSpecifyTrust || !cfg.TLS.DoUseCustomSNI {
		t.Errorf("unexpected tls: %+v", cfg.TLS)
	}
	if cfg.PPP.MRU != 1400 || cfg.PPP.MTU != 1400 || len(cfg.PPP.AuthProtocols) != 2 {
		t.Errorf("unexpected ppp: %+v", cfg.PPP)
	}
	if cfg.PPP.AuthProtocols[0] != sstp.AuthProtocolEAPMSCHAPv2 {
		t.Errorf("expected eap-mschapv2 first, got %v", cfg.PPP.AuthProtocols)
	}
	if cfg.PPP.AuthTimeout != 15*time.Second {
		t.Errorf("unexpected auth timeout: %v", cfg.PPP.AuthTimeout)
	}
	if !cfg.PPP.DoRequestStaticIPv4 || cfg.PPP.StaticIPv4Address != [4]byte{10, 0, 0, 2} {
		t.Errorf("unexpected static ipv4: %+v", cfg.PPP)
	}
	if !cfg.DNS.DoUseCustomServer || cfg.DNS.CustomAddress != [4]byte{8, 8, 8, 8} {
		t.Errorf("unexpected dns: %+v", cfg.DNS)
	}
	if !cfg.Route.AddCustomRoutes || len(cfg.Route.CustomRoutes) != 1 {
		t.Errorf("unexpected routes: %+v", cfg.Route)
	}
	if !cfg.Route.EnableAppBasedRule || len(cfg.Route.AllowedApplications) != 1 {
		t.Errorf("unexpected app rules: %+v", cfg.Route)
	}
	if cfg.Reconnect.Count != 5 || cfg.Reconnect.Interval != 20*time.Second {
		t.Errorf("unexpected reconnect: %+v", cfg.Reconnect)
	}
}

func TestLoadStringRejectsMissingHostname(t *testing.T) {
	in := `[tunnel]
	username = "alice"
	password = "hunter2"
	`
	if _, err := LoadString(in); err == nil {
		t.Fatalf("expected an error for missing hostname")
	}
}

func TestLoadStringRejectsUnknownParameter(t *testing.T) {
	in := `[tunnel]
	hostname = "vpn.example.com"
	bogus = true
	`
	if _, err := LoadString(in); err == nil {
		t.Fatalf("expected an error for unrecognised parameter")
	}
}

func TestLoadStringRejectsNoTunnelTable(t *testing.T) {
	if _, err := LoadString(`foo = "bar"`); err == nil {
		t.Fatalf("expected an error for a missing [tunnel] table")
	}
}
