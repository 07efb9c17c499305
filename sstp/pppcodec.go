package sstp

import (
	"bytes"
	"encoding/binary"
)

// pppHeader is the fixed HDLC prefix plus protocol number carried at the
// front of every PPP-over-SSTP DATA payload.
type pppHeader struct {
	HDLC     uint16
	Protocol pppProtocol
}

const pppHeaderLen = 4

// pppFrameHeader is the code/id/length triple common to LCP, IPCP, IPv6CP,
// PAP, CHAP and EAP frames, following the protocol number.
type pppFrameHeader struct {
	Code pppCode
	ID   uint8
	// Length covers the whole PPP portion: pppFrameHeader itself plus payload.
	Length uint16
}

const pppFrameHeaderLen = 4

// pppOption is a single Configure-frame TLV option.
type pppOption struct {
	Type uint8
	// Value is the option value, excluding the 2-byte type/length header.
	Value []byte
}

func (o *pppOption) totalLen() int {
	return 2 + len(o.Value)
}

func (o *pppOption) toBytes() []byte {
	b := make([]byte, 2+len(o.Value))
	b[0] = o.Type
	b[1] = byte(o.totalLen())
	copy(b[2:], o.Value)
	return b
}

// parsePppOptions parses a back-to-back option list, preserving unknown
// option types verbatim as ordinary pppOption values -- callers that care
// about known vs unknown options filter by Type themselves.
func parsePppOptions(b []byte) ([]pppOption, error) {
	var opts []pppOption
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, newParseError("ppp-option", "short option header: %d bytes", len(b))
		}
		optType := b[0]
		optLen := int(b[1])
		if optLen < 2 || optLen > len(b) {
			return nil, newParseError("ppp-option", "option length %d out of bounds", optLen)
		}
		opts = append(opts, pppOption{Type: optType, Value: append([]byte(nil), b[2:optLen]...)})
		b = b[optLen:]
	}
	return opts, nil
}

func findOption(opts []pppOption, optType uint8) *pppOption {
	for i := range opts {
		if opts[i].Type == optType {
			return &opts[i]
		}
	}
	return nil
}

// pppFrame is a parsed or to-be-sent PPP control frame (LCP/IPCP/IPv6CP):
// header plus either an option list (Configure-* codes) or raw payload
// bytes (Terminate-*, Code-Reject, Protocol-Reject, Echo, Discard).
type pppFrame struct {
	header  pppFrameHeader
	options []pppOption
	payload []byte

	// proto and raw are set by the demultiplexer on received frames only:
	// the PPP protocol number the frame arrived on, and its undecoded
	// frame-header-plus-body bytes, needed to build a Protocol-Reject or
	// Code-Reject carrying the rejected packet.
	proto pppProtocol
	raw   []byte
}

func isConfigureCode(c pppCode) bool {
	switch c {
	case pppCodeConfigureRequest, pppCodeConfigureAck, pppCodeConfigureNak, pppCodeConfigureReject:
		return true
	}
	return false
}

// parsePppFrame parses b, which must start at the protocol-specific frame
// header (i.e. after the pppHeader has already been stripped and the
// protocol identified).
func parsePppFrame(b []byte) (*pppFrame, error) {
	if len(b) < pppFrameHeaderLen {
		return nil, newParseError("ppp-frame", "short frame header: %d bytes", len(b))
	}
	var h pppFrameHeader
	if err := binary.Read(bytes.NewReader(b[:pppFrameHeaderLen]), binary.BigEndian, &h); err != nil {
		return nil, err
	}
	if int(h.Length) > len(b) || int(h.Length) < pppFrameHeaderLen {
		return nil, newParseError("ppp-frame", "frame length %d out of bounds (buffer %d)", h.Length, len(b))
	}
	body := b[pppFrameHeaderLen:h.Length]
	f := &pppFrame{header: h}
	if isConfigureCode(h.Code) {
		opts, err := parsePppOptions(body)
		if err != nil {
			return nil, err
		}
		f.options = opts
	} else {
		f.payload = append([]byte(nil), body...)
	}
	return f, nil
}

func (f *pppFrame) bodyBytes() []byte {
	if isConfigureCode(f.header.Code) {
		buf := new(bytes.Buffer)
		for _, o := range f.options {
			buf.Write(o.toBytes())
		}
		return buf.Bytes()
	}
	return f.payload
}

// toDataBytes encodes f as a complete SSTP DATA packet: packet header, HDLC
// header, PPP protocol, then the frame header and body.
func (f *pppFrame) toDataBytes(proto pppProtocol) ([]byte, error) {
	body := f.bodyBytes()
	f.header.Length = uint16(pppFrameHeaderLen + len(body))

	inner := new(bytes.Buffer)
	ppp := pppHeader{HDLC: pppHDLCHeader, Protocol: proto}
	if err := binary.Write(inner, binary.BigEndian, ppp); err != nil {
		return nil, err
	}
	if err := binary.Write(inner, binary.BigEndian, f.header); err != nil {
		return nil, err
	}
	inner.Write(body)

	outer := new(bytes.Buffer)
	hdr := sstpPacketHeader{
		Type:   sstpPacketTypeData,
		Length: uint16(sstpPacketHeaderLen + inner.Len()),
	}
	if err := binary.Write(outer, binary.BigEndian, hdr); err != nil {
		return nil, err
	}
	outer.Write(inner.Bytes())
	return outer.Bytes(), nil
}

// encodeIPDatagram wraps an IPv4/IPv6 payload as a complete SSTP DATA
// packet: unlike LCP/IPCP/etc frames, IP datagrams carry no PPP
// code/id/length header -- just the HDLC header and protocol number
// directly in front of the L3 bytes (§4.4).
func encodeIPDatagram(proto pppProtocol, payload []byte) []byte {
	inner := make([]byte, pppHeaderLen+len(payload))
	binary.BigEndian.PutUint16(inner[0:2], pppHDLCHeader)
	binary.BigEndian.PutUint16(inner[2:4], uint16(proto))
	copy(inner[pppHeaderLen:], payload)

	out := make([]byte, sstpPacketHeaderLen+len(inner))
	binary.BigEndian.PutUint16(out[0:2], uint16(sstpPacketTypeData))
	binary.BigEndian.PutUint16(out[2:4], uint16(len(out)))
	copy(out[sstpPacketHeaderLen:], inner)
	return out
}

func newConfigureFrame(code pppCode, id uint8, opts []pppOption) *pppFrame {
	return &pppFrame{
		header:  pppFrameHeader{Code: code, ID: id},
		options: opts,
	}
}

func newRawFrame(code pppCode, id uint8, payload []byte) *pppFrame {
	return &pppFrame{
		header:  pppFrameHeader{Code: code, ID: id},
		payload: payload,
	}
}
