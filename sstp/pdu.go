package sstp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// sstpPacketHeader is the 4-byte header common to both SSTP packet types.
type sstpPacketHeader struct {
	Type   sstpPacketType
	Length uint16
}

const sstpPacketHeaderLen = 4

// sstpControlHeader follows the packet header on CONTROL packets.
type sstpControlHeader struct {
	MsgType  sstpMsgType
	NumAttrs uint16
}

const sstpControlHeaderLen = 4

// sstpAttrHeader is the 4-byte header common to every SSTP attribute.
type sstpAttrHeader struct {
	Reserved uint8
	ID       sstpAttrID
	Length   uint16
}

const sstpAttrHeaderLen = 4

// sstpAttr is a decoded attribute: header plus body bytes.
type sstpAttr struct {
	header sstpAttrHeader
	body   []byte
}

func (a *sstpAttr) totalLen() int {
	return int(a.header.Length)
}

func newSstpAttr(id sstpAttrID, body []byte) sstpAttr {
	return sstpAttr{
		header: sstpAttrHeader{
			ID:     id,
			Length: uint16(sstpAttrHeaderLen + len(body)),
		},
		body: body,
	}
}

// sstpControlMessage is a parsed or to-be-sent CONTROL packet.
type sstpControlMessage struct {
	msgType sstpMsgType
	attrs   []sstpAttr
}

func newSstpControlMessage(msgType sstpMsgType, attrs []sstpAttr) *sstpControlMessage {
	return &sstpControlMessage{msgType: msgType, attrs: attrs}
}

func (m *sstpControlMessage) findAttr(id sstpAttrID) *sstpAttr {
	for i := range m.attrs {
		if m.attrs[i].header.ID == id {
			return &m.attrs[i]
		}
	}
	return nil
}

func (m *sstpControlMessage) bodyLen() int {
	n := sstpControlHeaderLen
	for _, a := range m.attrs {
		n += a.totalLen()
	}
	return n
}

// toBytes encodes the full SSTP CONTROL packet: packet header, control
// header, then each attribute header and body in order.
func (m *sstpControlMessage) toBytes() ([]byte, error) {
	buf := new(bytes.Buffer)

	hdr := sstpPacketHeader{
		Type:   sstpPacketTypeControl,
		Length: uint16(sstpPacketHeaderLen + m.bodyLen()),
	}
	if err := binary.Write(buf, binary.BigEndian, hdr); err != nil {
		return nil, err
	}
	ctl := sstpControlHeader{MsgType: m.msgType, NumAttrs: uint16(len(m.attrs))}
	if err := binary.Write(buf, binary.BigEndian, ctl); err != nil {
		return nil, err
	}
	for _, a := range m.attrs {
		if err := binary.Write(buf, binary.BigEndian, a.header); err != nil {
			return nil, err
		}
		if _, err := buf.Write(a.body); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// parseSstpAttrs parses a buffer of back-to-back attributes, per §4.1.
func parseSstpAttrs(b []byte) (attrs []sstpAttr, err error) {
	r := bytes.NewReader(b)
	for r.Len() > 0 {
		if r.Len() < sstpAttrHeaderLen {
			return nil, newParseError("sstp-attr", "short attribute header: %d bytes remaining", r.Len())
		}
		var h sstpAttrHeader
		if err := binary.Read(r, binary.BigEndian, &h); err != nil {
			return nil, err
		}
		bodyLen := int(h.Length) - sstpAttrHeaderLen
		if bodyLen < 0 || bodyLen > r.Len() {
			return nil, newParseError("sstp-attr", "attribute length %d out of bounds", h.Length)
		}
		body := make([]byte, bodyLen)
		if _, err := r.Read(body); err != nil {
			return nil, err
		}
		attrs = append(attrs, sstpAttr{header: h, body: body})
	}
	return attrs, nil
}

// parseSstpControlBuffer parses the control-header-onward portion of a
// CONTROL packet (i.e. buf[sstpPacketHeaderLen:length]).
func parseSstpControlBuffer(buf []byte) (*sstpControlMessage, error) {
	if len(buf) < sstpControlHeaderLen {
		return nil, newParseError("sstp-control", "short control header: %d bytes", len(buf))
	}
	r := bytes.NewReader(buf[:sstpControlHeaderLen])
	var ctl sstpControlHeader
	if err := binary.Read(r, binary.BigEndian, &ctl); err != nil {
		return nil, err
	}
	if ctl.MsgType < sstpMsgTypeCallConnectRequest || ctl.MsgType > sstpMsgTypeEchoResponse {
		return nil, newParseError("sstp-control", "unknown message type %d", ctl.MsgType)
	}
	attrs, err := parseSstpAttrs(buf[sstpControlHeaderLen:])
	if err != nil {
		return nil, err
	}
	if int(ctl.NumAttrs) != len(attrs) {
		return nil, newParseError("sstp-control", "attribute count mismatch: header says %d, found %d", ctl.NumAttrs, len(attrs))
	}
	return &sstpControlMessage{msgType: ctl.MsgType, attrs: attrs}, nil
}

// encapsulatedProtocolIDAttr builds the Encapsulated-Protocol-Id attribute
// carried by Call-Connect-Request: a single 2-byte value of 1 (PPP).
func encapsulatedProtocolIDAttr() sstpAttr {
	body := make([]byte, 2)
	binary.BigEndian.PutUint16(body, encapsulatedProtocolPPP)
	return newSstpAttr(sstpAttrIDEncapsulatedProtocolID, body)
}

// cryptoBindingRequestBody is the 36-byte Crypto-Binding-Request attribute
// body (40 bytes with the attribute header): 3 reserved bytes, 1-byte hash bitmask, 32-byte nonce.
type cryptoBindingRequestBody struct {
	hashBitmask uint8
	nonce       [32]byte
}

const cryptoBindingRequestBodyLen = 36 // 4 reserved/bitmask bytes + 32 nonce

func parseCryptoBindingRequestBody(b []byte) (*cryptoBindingRequestBody, error) {
	if len(b) != cryptoBindingRequestBodyLen {
		return nil, newParseError("crypto-binding-request", "expected %d byte body, got %d", cryptoBindingRequestBodyLen, len(b))
	}
	out := &cryptoBindingRequestBody{hashBitmask: b[3]}
	copy(out.nonce[:], b[4:36])
	return out, nil
}

// cryptoBindingBody is the 100-byte Crypto-Binding attribute body: 3
// reserved, 1-byte hash protocol, 32-byte nonce, 32-byte cert hash,
// 32-byte compound MAC.
type cryptoBindingBody struct {
	hashProtocol hashProtocol
	nonce        [32]byte
	certHash     [32]byte
	compoundMac  [32]byte
}

const cryptoBindingBodyLen = 100 // 4 + 32 + 32 + 32

func (c *cryptoBindingBody) toBytes() []byte {
	b := make([]byte, cryptoBindingBodyLen)
	b[3] = byte(c.hashProtocol)
	copy(b[4:36], c.nonce[:])
	copy(b[36:68], c.certHash[:])
	copy(b[68:100], c.compoundMac[:])
	return b
}

func parseCryptoBindingBody(b []byte) (*cryptoBindingBody, error) {
	if len(b) != cryptoBindingBodyLen {
		return nil, newParseError("crypto-binding", "expected %d byte body, got %d", cryptoBindingBodyLen, len(b))
	}
	out := &cryptoBindingBody{hashProtocol: hashProtocol(b[3])}
	copy(out.nonce[:], b[4:36])
	copy(out.certHash[:], b[36:68])
	copy(out.compoundMac[:], b[68:100])
	return out, nil
}

// statusInfoBody encodes the 4-byte status value carried by Call-Connect-Nak
// and Call-Abort attributes; the value itself is only used for diagnostics.
func statusInfoBody(status uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, status)
	return b
}

// parseSstpPacketHeader reads the fixed 4-byte SSTP packet header from the
// front of buf, per the incoming demultiplexer's loop invariant (§4.3): buf
// must have at least sstpPacketHeaderLen bytes.
func parseSstpPacketHeader(buf []byte) (*sstpPacketHeader, error) {
	if len(buf) < sstpPacketHeaderLen {
		return nil, newParseError("sstp-packet", "short packet header: %d bytes", len(buf))
	}
	var h sstpPacketHeader
	if err := binary.Read(bytes.NewReader(buf[:sstpPacketHeaderLen]), binary.BigEndian, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (h *sstpPacketHeader) String() string {
	return fmt.Sprintf("type=%#x length=%d", uint16(h.Type), h.Length)
}
