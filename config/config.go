/*
Package config implements a parser for SSTP tunnel configuration represented
in the TOML format: https://github.com/toml-lang/toml.

A single [tunnel] table describes one tunnel instance. Nested tables group
the TLS, PPP, DNS, routing, proxy and reconnection options.

	[tunnel]
	hostname = "vpn.example.com"
	port = 443
	username = "alice"
	password = "hunter2"

	[tunnel.proxy]
	# Optional HTTP CONNECT proxy the transport must tunnel through before
	# starting the TLS handshake.
	host = "proxy.example.com"
	port = 8080
	user = "proxyuser"
	password = "proxypass"

	[tunnel.tls]
	# ssl_version restricts the TLS versions the transport will negotiate.
	# Supported values: "default", "tls1.0", "tls1.1", "tls1.2", "tls1.3".
	ssl_version = "tls1.2"
	verify_host = true
	cert_dir = "/etc/sstpc/certs"
	sni = "vpn.example.com"

	[tunnel.ppp]
	mru = 1500
	mtu = 1500
	# auth_protocols lists the acceptable authentication protocols. The
	# order of the list is not significant: when a choice is made, the
	# client prefers eap-mschapv2, then mschapv2, then pap, among those
	# listed. Supported values: "pap", "mschapv2", "eap-mschapv2".
	auth_protocols = ["eap-mschapv2", "mschapv2"]
	auth_timeout = 30000 # milliseconds
	ipv4 = true
	ipv6 = false
	static_ipv4_address = [10, 0, 0, 2]

	[tunnel.dns]
	request_address = true
	custom_server = [8, 8, 8, 8]

	[tunnel.route]
	add_default_route = true
	route_private_addresses = true
	custom_routes = ["192.168.50.0/24"]
	allowed_applications = ["com.example.app"]

	[tunnel.reconnect]
	enabled = true
	count = 3
	interval = 10000 # milliseconds
*/
package config

import (
	"fmt"
	"time"

	"github.com/katalix/go-sstp/sstp"
	"github.com/pelletier/go-toml"
)

func toBool(v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("supplied value could not be parsed as a bool")
}

// go-toml's ToMap function represents numbers as either uint64 or int64.
// So when we are converting numbers, we need to figure out which one it
// has picked and range check to ensure that the number from the config
// fits within the range of the destination type.
func toByte(v interface{}) (byte, error) {
	if b, ok := v.(int64); ok {
		if b < 0x0 || b > 0xff {
			return 0, fmt.Errorf("value %x out of range", b)
		}
		return byte(b), nil
	} else if b, ok := v.(uint64); ok {
		if b > 0xff {
			return 0, fmt.Errorf("value %x out of range", b)
		}
		return byte(b), nil
	}
	return 0, fmt.Errorf("unexpected %T value %v", v, v)
}

func toUint16(v interface{}) (uint16, error) {
	if b, ok := v.(int64); ok {
		if b < 0x0 || b > 0xffff {
			return 0, fmt.Errorf("value %x out of range", b)
		}
		return uint16(b), nil
	} else if b, ok := v.(uint64); ok {
		if b > 0xffff {
			return 0, fmt.Errorf("value %x out of range", b)
		}
		return uint16(b), nil
	}
	return 0, fmt.Errorf("unexpected %T value %v", v, v)
}

func toInt(v interface{}) (int, error) {
	if b, ok := v.(int64); ok {
		return int(b), nil
	} else if b, ok := v.(uint64); ok {
		return int(b), nil
	}
	return 0, fmt.Errorf("unexpected %T value %v", v, v)
}

func toString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("supplied value could not be parsed as a string")
}

func toDurationMs(v interface{}) (time.Duration, error) {
	u, err := toInt(v)
	return time.Duration(u) * time.Millisecond, err
}

func to4(v interface{}) ([4]byte, error) {
	var out [4]byte
	vals, ok := v.([]interface{})
	if !ok || len(vals) != 4 {
		return out, fmt.Errorf("expected a 4-element array")
	}
	for i, n := range vals {
		b, err := toByte(n)
		if err != nil {
			return out, err
		}
		out[i] = b
	}
	return out, nil
}

func toStringSlice(v interface{}) ([]string, error) {
	vals, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array value")
	}
	out := make([]string, 0, len(vals))
	for _, e := range vals {
		s, err := toString(e)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func toSSLVersion(v interface{}) (sstp.SSLVersion, error) {
	s, err := toString(v)
	if err != nil {
		return sstp.SSLVersionDefault, err
	}
	switch s {
	case "default", "":
		return sstp.SSLVersionDefault, nil
	case "tls1.0":
		return sstp.SSLVersionTLS10, nil
	case "tls1.1":
		return sstp.SSLVersionTLS11, nil
	case "tls1.2":
		return sstp.SSLVersionTLS12, nil
	case "tls1.3":
		return sstp.SSLVersionTLS13, nil
	}
	return sstp.SSLVersionDefault, fmt.Errorf("expect one of 'default', 'tls1.0', 'tls1.1', 'tls1.2', 'tls1.3'")
}

func toAuthProtocols(v interface{}) ([]sstp.AuthProtocol, error) {
	names, err := toStringSlice(v)
	if err != nil {
		return nil, err
	}
	var out []sstp.AuthProtocol
	for _, n := range names {
		switch n {
		case "pap":
			out = append(out, sstp.AuthProtocolPAP)
		case "mschapv2":
			out = append(out, sstp.AuthProtocolMSCHAPv2)
		case "eap-mschapv2":
			out = append(out, sstp.AuthProtocolEAPMSCHAPv2)
		default:
			return nil, fmt.Errorf("expect one of 'pap', 'mschapv2', 'eap-mschapv2'")
		}
	}
	return out, nil
}

func newProxyConfig(pcfg map[string]interface{}) (*sstp.ProxyConfig, error) {
	pc := &sstp.ProxyConfig{}
	for k, v := range pcfg {
		var err error
		switch k {
		case "host":
			pc.Host, err = toString(v)
		case "port":
			var p uint16
			p, err = toUint16(v)
			pc.Port = p
		case "user":
			pc.User, err = toString(v)
		case "password":
			pc.Password, err = toString(v)
		default:
			return nil, fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return pc, nil
}

func loadTLSConfig(tc *sstp.TLSConfig, tlscfg map[string]interface{}) error {
	for k, v := range tlscfg {
		var err error
		switch k {
		case "ssl_version":
			tc.Version, err = toSSLVersion(v)
		case "verify_host":
			tc.DoVerifyHost, err = toBool(v)
		case "cert_dir":
			tc.CertDir, err = toString(v)
			tc.DoSpecifyTrust = tc.CertDir != ""
		case "sni":
			tc.CustomSNI, err = toString(v)
			tc.DoUseCustomSNI = tc.CustomSNI != ""
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func loadPPPConfig(pc *sstp.PPPConfig, pppcfg map[string]interface{}) error {
	for k, v := range pppcfg {
		var err error
		switch k {
		case "mru":
			pc.MRU, err = toUint16(v)
		case "mtu":
			pc.MTU, err = toUint16(v)
		case "auth_protocols":
			pc.AuthProtocols, err = toAuthProtocols(v)
		case "auth_timeout":
			pc.AuthTimeout, err = toDurationMs(v)
		case "ipv4":
			pc.IPv4Enabled, err = toBool(v)
		case "ipv6":
			pc.IPv6Enabled, err = toBool(v)
		case "static_ipv4_address":
			pc.StaticIPv4Address, err = to4(v)
			pc.DoRequestStaticIPv4 = err == nil
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func loadDNSConfig(dc *sstp.DNSConfig, dnscfg map[string]interface{}) error {
	for k, v := range dnscfg {
		var err error
		switch k {
		case "request_address":
			dc.DoRequestAddress, err = toBool(v)
		case "custom_server":
			dc.CustomAddress, err = to4(v)
			dc.DoUseCustomServer = err == nil
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func loadRouteConfig(rc *sstp.RouteConfig, routecfg map[string]interface{}) error {
	for k, v := range routecfg {
		var err error
		switch k {
		case "add_default_route":
			rc.AddDefaultRoute, err = toBool(v)
		case "route_private_addresses":
			rc.RoutePrivateAddresses, err = toBool(v)
		case "custom_routes":
			rc.CustomRoutes, err = toStringSlice(v)
			rc.AddCustomRoutes = len(rc.CustomRoutes) > 0
		case "allowed_applications":
			rc.AllowedApplications, err = toStringSlice(v)
			rc.EnableAppBasedRule = len(rc.AllowedApplications) > 0
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func loadReconnectConfig(rc *sstp.ReconnectConfig, rcfg map[string]interface{}) error {
	for k, v := range rcfg {
		var err error
		switch k {
		case "enabled":
			rc.Enabled, err = toBool(v)
		case "count":
			var c int
			c, err = toInt(v)
			rc.Count = c
		case "interval":
			rc.Interval, err = toDurationMs(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func newTunnelConfig(tcfg map[string]interface{}) (*sstp.Config, error) {
	cfg := sstp.DefaultConfig()
	for k, v := range tcfg {
		var err error
		switch k {
		case "hostname":
			cfg.Hostname, err = toString(v)
		case "port":
			cfg.Port, err = toUint16(v)
		case "username":
			cfg.Username, err = toString(v)
		case "password":
			cfg.Password, err = toString(v)
		case "proxy":
			pmap, ok := v.(map[string]interface{})
			if !ok {
				err = fmt.Errorf("proxy must be a table, e.g. '[tunnel.proxy]'")
				break
			}
			cfg.Proxy, err = newProxyConfig(pmap)
		case "tls":
			tmap, ok := v.(map[string]interface{})
			if !ok {
				err = fmt.Errorf("tls must be a table, e.g. '[tunnel.tls]'")
				break
			}
			err = loadTLSConfig(&cfg.TLS, tmap)
		case "ppp":
			pmap, ok := v.(map[string]interface{})
			if !ok {
				err = fmt.Errorf("ppp must be a table, e.g. '[tunnel.ppp]'")
				break
			}
			err = loadPPPConfig(&cfg.PPP, pmap)
		case "dns":
			dmap, ok := v.(map[string]interface{})
			if !ok {
				err = fmt.Errorf("dns must be a table, e.g. '[tunnel.dns]'")
				break
			}
			err = loadDNSConfig(&cfg.DNS, dmap)
		case "route":
			rmap, ok := v.(map[string]interface{})
			if !ok {
				err = fmt.Errorf("route must be a table, e.g. '[tunnel.route]'")
				break
			}
			err = loadRouteConfig(&cfg.Route, rmap)
		case "reconnect":
			rmap, ok := v.(map[string]interface{})
			if !ok {
				err = fmt.Errorf("reconnect must be a table, e.g. '[tunnel.reconnect]'")
				break
			}
			err = loadReconnectConfig(&cfg.Reconnect, rmap)
		default:
			return nil, fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return cfg, nil
}

func newConfig(tree *toml.Tree) (*sstp.Config, error) {
	m := tree.ToMap()
	got, ok := m["tunnel"]
	if !ok {
		return nil, fmt.Errorf("no tunnel table present")
	}
	tmap, ok := got.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("tunnel must be a table, e.g. '[tunnel]'")
	}
	cfg, err := newTunnelConfig(tmap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tunnel: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads tunnel configuration from the specified file.
func LoadFile(path string) (*sstp.Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	return newConfig(tree)
}

// LoadString loads tunnel configuration from the specified string.
func LoadString(content string) (*sstp.Config, error) {
	tree, err := toml.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load config string: %v", err)
	}
	return newConfig(tree)
}
