// Package tundev implements sstp.TunDevice for Linux: it opens a TUN
// character device via TUNSETIFF and programs addresses, routes and MTU
// over a raw NETLINK_ROUTE socket.
package tundev

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-sstp/sstp"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

const tunDevicePath = "/dev/net/tun"

var _ sstp.TunDevice = (*Device)(nil)

// Device is the concrete Linux TunDevice. A zero value is not usable; build
// one with New.
type Device struct {
	logger log.Logger

	name string
	tun  *os.File
	rt   *netlink.Conn
	ifx  int
}

// New opens /dev/net/tun and attaches a TUN interface named name (or an
// autogenerated name if name is empty), and opens the NETLINK_ROUTE socket
// used to program it. The interface is not brought up, addressed or
// routed until the TunDevice methods are called.
func New(name string, logger log.Logger) (*Device, error) {
	tun, ifname, err := openTun(name)
	if err != nil {
		return nil, err
	}

	rt, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		tun.Close()
		return nil, fmt.Errorf("dial rtnetlink: %v", err)
	}

	d := &Device{
		logger: logger,
		name:   ifname,
		tun:    tun,
		rt:     rt,
	}

	idx, err := d.linkIndex(ifname)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.ifx = idx

	return d, nil
}

func openTun(name string) (*os.File, string, error) {
	f, err := os.OpenFile(tunDevicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %v", tunDevicePath, err)
	}

	req, err := unix.NewIfreq(name)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("build ifreq: %v", err)
	}
	req.SetUint16(unix.IFF_TUN | unix.IFF_NO_PI)

	if err := unix.IoctlIfreq(int(f.Fd()), unix.TUNSETIFF, req); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("TUNSETIFF: %v", err)
	}

	return f, req.Name(), nil
}

func (d *Device) linkIndex(name string) (int, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("lookup interface %s: %v", name, err)
	}
	return iface.Index, nil
}

// parseCIDR splits a route's CIDR notation into the netlink address family,
// the (already-masked) destination bytes, and the prefix length. A zero
// prefix (a default route) carries no RTA_DST attribute.
func parseCIDR(cidr string) (family uint8, dst []byte, prefix int, err error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("invalid route %q: %v", cidr, err)
	}
	ones, _ := ipnet.Mask.Size()
	if v4 := ipnet.IP.To4(); v4 != nil {
		return unix.AF_INET, v4, ones, nil
	}
	return unix.AF_INET6, ipnet.IP.To16(), ones, nil
}

// AddAddress implements sstp.TunDevice.
func (d *Device) AddAddress(addr [4]byte, prefix int) error {
	return d.addAddr(unix.AF_INET, addr[:], prefix)
}

// AddAddressV6 implements sstp.TunDevice.
func (d *Device) AddAddressV6(addr [16]byte, prefix int) error {
	return d.addAddr(unix.AF_INET6, addr[:], prefix)
}

func (d *Device) addAddr(family uint8, addr []byte, prefix int) error {
	msg := ifAddrMsg{
		Family:    family,
		PrefixLen: uint8(prefix),
		Scope:     unix.RT_SCOPE_UNIVERSE,
		Index:     uint32(d.ifx),
	}

	data := msg.toBytes()
	data = append(data, encodeRTAttr(unix.IFA_LOCAL, addr)...)
	data = append(data, encodeRTAttr(unix.IFA_ADDRESS, addr)...)

	level.Debug(d.logger).Log("msg", "adding tun address", "iface", d.name, "prefix", prefix)
	return d.execute(unix.RTM_NEWADDR, netlink.Request|netlink.Create|netlink.Replace|netlink.Acknowledge, data)
}

// AddDNSServer implements sstp.TunDevice. Linux has no kernel-level DNS
// concept; this writes a nameserver line ahead of the existing resolver
// configuration, the same mechanism classic Linux PPP/VPN clients use.
func (d *Device) AddDNSServer(addr [4]byte) error {
	ns := fmt.Sprintf("nameserver %d.%d.%d.%d\n", addr[0], addr[1], addr[2], addr[3])

	existing, err := os.ReadFile("/etc/resolv.conf")
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read resolv.conf: %v", err)
	}
	if strings.Contains(string(existing), strings.TrimSpace(ns)) {
		return nil
	}

	level.Debug(d.logger).Log("msg", "adding dns server", "server", fmt.Sprintf("%d.%d.%d.%d", addr[0], addr[1], addr[2], addr[3]))
	return os.WriteFile("/etc/resolv.conf", append([]byte(ns), existing...), 0644)
}

// AddRoute implements sstp.TunDevice. cidr must be a valid IPv4 or IPv6
// network in CIDR notation; "0.0.0.0/0" and "::/0" add a default route via
// the tun interface.
func (d *Device) AddRoute(cidr string) error {
	family, dst, prefix, err := parseCIDR(cidr)
	if err != nil {
		return err
	}

	msg := rtMsg{
		Family:   family,
		DstLen:   uint8(prefix),
		Table:    unix.RT_TABLE_MAIN,
		Protocol: unix.RTPROT_STATIC,
		Scope:    unix.RT_SCOPE_LINK,
		Type:     unix.RTN_UNICAST,
	}

	data := msg.toBytes()
	if prefix > 0 {
		data = append(data, encodeRTAttr(unix.RTA_DST, dst)...)
	}
	data = append(data, encodeRTAttrUint32(unix.RTA_OIF, uint32(d.ifx))...)

	level.Debug(d.logger).Log("msg", "adding route", "iface", d.name, "cidr", cidr)
	return d.execute(unix.RTM_NEWROUTE, netlink.Request|netlink.Create|netlink.Acknowledge, data)
}

// AddAllowedApplication implements sstp.TunDevice. Per-app routing rules
// are a platform/host policy concern with no Linux kernel analogue
// exercised by this adapter.
func (d *Device) AddAllowedApplication(id string) error {
	level.Debug(d.logger).Log("msg", "allowed application rule not applicable on this platform", "id", id)
	return nil
}

// SetMTU implements sstp.TunDevice.
func (d *Device) SetMTU(mtu int) error {
	msg := ifInfoMsg{
		Family: unix.AF_UNSPEC,
		Index:  int32(d.ifx),
	}
	data := msg.toBytes()
	data = append(data, encodeRTAttrUint32(unix.IFLA_MTU, uint32(mtu))...)

	return d.execute(unix.RTM_NEWLINK, netlink.Request|netlink.Acknowledge, data)
}

// Establish implements sstp.TunDevice: it brings the interface up and
// returns blocking read/write handles onto the tun character device.
func (d *Device) Establish() (sstp.TunReader, sstp.TunWriter, error) {
	if err := d.setLinkUp(); err != nil {
		return nil, nil, err
	}
	return (*tunFile)(d.tun), (*tunFile)(d.tun), nil
}

func (d *Device) setLinkUp() error {
	msg := ifInfoMsg{
		Family: unix.AF_UNSPEC,
		Index:  int32(d.ifx),
		Flags:  unix.IFF_UP,
		Change: unix.IFF_UP,
	}
	return d.execute(unix.RTM_NEWLINK, netlink.Request|netlink.Acknowledge, msg.toBytes())
}

func (d *Device) execute(msgType uint16, flags netlink.HeaderFlags, data []byte) error {
	msg := netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(msgType),
			Flags: flags,
		},
		Data: data,
	}
	_, err := d.rt.Execute(msg)
	return err
}

// Close releases the tun device and netlink socket.
func (d *Device) Close() error {
	if d.rt != nil {
		d.rt.Close()
	}
	if d.tun != nil {
		return d.tun.Close()
	}
	return nil
}

// tunFile adapts *os.File to sstp's narrower TunReader/TunWriter shape.
type tunFile os.File

func (t *tunFile) Read(buf []byte) (int, error) {
	return (*os.File)(t).Read(buf)
}

func (t *tunFile) Write(buf []byte, off, length int) (int, error) {
	return (*os.File)(t).Write(buf[off : off+length])
}
