package tundev

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// rtaAlignTo is NLA_ALIGNTO: every rtattr is padded to a 4 byte boundary.
const rtaAlignTo = 4

func rtaAlign(n int) int {
	return (n + rtaAlignTo - 1) &^ (rtaAlignTo - 1)
}

// rtAttrHeader mirrors struct rtattr from <linux/rtnetlink.h>. Don't make
// the fields private: binary.Write/Read depend on the struct's layout via
// reflection.
type rtAttrHeader struct {
	Len  uint16
	Type uint16
}

const rtAttrHeaderLen = 4

// encodeRTAttr builds one length-prefixed, 4-byte-aligned route attribute
// TLV, the netlink analogue of avp.go's AVP encoding.
func encodeRTAttr(attrType uint16, data []byte) []byte {
	unpadded := rtAttrHeaderLen + len(data)
	buf := make([]byte, rtaAlign(unpadded))

	binary.NativeEndian.PutUint16(buf[0:2], uint16(unpadded))
	binary.NativeEndian.PutUint16(buf[2:4], attrType)
	copy(buf[rtAttrHeaderLen:], data)
	return buf
}

func encodeRTAttrString(attrType uint16, s string) []byte {
	return encodeRTAttr(attrType, append([]byte(s), 0))
}

func encodeRTAttrUint32(attrType uint16, v uint32) []byte {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], v)
	return encodeRTAttr(attrType, b[:])
}

// rtAttrTLV is a decoded route attribute, used by the tests to check
// round-tripping without opening a real netlink socket.
type rtAttrTLV struct {
	Type  uint16
	Value []byte
}

// parseRTAttrs walks a buffer of back-to-back rtattr TLVs.
func parseRTAttrs(b []byte) ([]rtAttrTLV, error) {
	var out []rtAttrTLV
	for len(b) > 0 {
		if len(b) < rtAttrHeaderLen {
			return nil, fmt.Errorf("short rtattr header: %d bytes left", len(b))
		}
		var hdr rtAttrHeader
		if err := binary.Read(bytes.NewReader(b[:rtAttrHeaderLen]), binary.NativeEndian, &hdr); err != nil {
			return nil, err
		}
		if int(hdr.Len) < rtAttrHeaderLen || int(hdr.Len) > len(b) {
			return nil, fmt.Errorf("invalid rtattr length %d", hdr.Len)
		}
		out = append(out, rtAttrTLV{
			Type:  hdr.Type,
			Value: append([]byte(nil), b[rtAttrHeaderLen:hdr.Len]...),
		})
		b = b[rtaAlign(int(hdr.Len)):]
	}
	return out, nil
}

// ifAddrMsg mirrors struct ifaddrmsg from <linux/if_addr.h>, the fixed
// header carried by RTM_NEWADDR/RTM_DELADDR messages.
type ifAddrMsg struct {
	Family    uint8
	PrefixLen uint8
	Flags     uint8
	Scope     uint8
	Index     uint32
}

const ifAddrMsgLen = 8

func (m ifAddrMsg) toBytes() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.NativeEndian, m)
	return buf.Bytes()
}

// rtMsg mirrors struct rtmsg from <linux/rtnetlink.h>, the fixed header
// carried by RTM_NEWROUTE/RTM_DELROUTE messages.
type rtMsg struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	Tos      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

const rtMsgLen = 12

func (m rtMsg) toBytes() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.NativeEndian, m)
	return buf.Bytes()
}

// ifInfoMsg mirrors struct ifinfomsg from <linux/rtnetlink.h>, the fixed
// header carried by RTM_NEWLINK/RTM_GETLINK messages.
type ifInfoMsg struct {
	Family uint8
	_      uint8
	Type   uint16
	Index  int32
	Flags  uint32
	Change uint32
}

const ifInfoMsgLen = 16

func (m ifInfoMsg) toBytes() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.NativeEndian, m)
	return buf.Bytes()
}
