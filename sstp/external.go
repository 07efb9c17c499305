package sstp

// TunDevice is the host's virtual network interface collaborator (§6). The
// Engine configures it during phase 6 and then reads/writes L3 frames
// through the handles returned by Establish for the lifetime of the
// tunnel.
type TunDevice interface {
	AddAddress(addr [4]byte, prefix int) error
	AddAddressV6(addr [16]byte, prefix int) error
	AddDNSServer(addr [4]byte) error
	AddRoute(cidr string) error
	AddAllowedApplication(id string) error
	SetMTU(mtu int) error
	// Establish finalises device configuration and returns blocking
	// read/write handles for L3 frames.
	Establish() (TunReader, TunWriter, error)
}

// TunReader reads one L3 frame into buf, returning its length.
type TunReader interface {
	Read(buf []byte) (int, error)
}

// TunWriter writes the L3 frame in buf[off : off+length].
type TunWriter interface {
	Write(buf []byte, off, length int) (int, error)
}

// TrustStore supplies custom CA material when TLSConfig.DoSpecifyTrust is
// set.
type TrustStore interface {
	// ListCACerts returns PEM-encoded CA certificates.
	ListCACerts() ([][]byte, error)
}

// Reporter is the host notification and logging collaborator (§6). For
// ReportChannelCertificate, id carries the untrusted leaf certificate,
// base64-encoded, so the host can offer to save/trust it.
type Reporter interface {
	Notify(channel ReportChannel, body string, id string)
}

// ReportChannel identifies the kind of event passed to Reporter.Notify.
type ReportChannel string

const (
	ReportChannelError       ReportChannel = "ERROR"
	ReportChannelReconnect   ReportChannel = "RECONNECT"
	ReportChannelDisconnect  ReportChannel = "DISCONNECT"
	ReportChannelCertificate ReportChannel = "CERTIFICATE"
)
