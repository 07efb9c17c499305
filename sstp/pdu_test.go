package sstp

import (
	"bytes"
	"testing"
)

func TestSstpControlMessageRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		msgType sstpMsgType
		attrs   []sstpAttr
	}{
		{"no attributes", sstpMsgTypeEchoRequest, nil},
		{"one attribute", sstpMsgTypeCallConnectRequest, []sstpAttr{encapsulatedProtocolIDAttr()}},
		{"crypto binding", sstpMsgTypeCallConnected, []sstpAttr{
			newSstpAttr(sstpAttrIDCryptoBinding, (&cryptoBindingBody{hashProtocol: hashProtocolSHA256}).toBytes()),
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg := newSstpControlMessage(c.msgType, c.attrs)
			b, err := msg.toBytes()
			if err != nil {
				t.Fatalf("toBytes: %v", err)
			}

			hdr, err := parseSstpPacketHeader(b)
			if err != nil {
				t.Fatalf("parseSstpPacketHeader: %v", err)
			}
			if hdr.Type != sstpPacketTypeControl {
				t.Fatalf("unexpected packet type %#x", hdr.Type)
			}
			if int(hdr.Length) != len(b) {
				t.Fatalf("header length %d does not match encoded length %d", hdr.Length, len(b))
			}

			got, err := parseSstpControlBuffer(b[sstpPacketHeaderLen:])
			if err != nil {
				t.Fatalf("parseSstpControlBuffer: %v", err)
			}
			if got.msgType != c.msgType {
				t.Errorf("msgType: got %v want %v", got.msgType, c.msgType)
			}
			if len(got.attrs) != len(c.attrs) {
				t.Fatalf("attrs: got %d want %d", len(got.attrs), len(c.attrs))
			}
			for i := range c.attrs {
				if got.attrs[i].header.ID != c.attrs[i].header.ID {
					t.Errorf("attr %d ID: got %v want %v", i, got.attrs[i].header.ID, c.attrs[i].header.ID)
				}
				if !bytes.Equal(got.attrs[i].body, c.attrs[i].body) {
					t.Errorf("attr %d body: got %v want %v", i, got.attrs[i].body, c.attrs[i].body)
				}
			}
		})
	}
}

func TestParseSstpAttrsRejectsShortHeader(t *testing.T) {
	if _, err := parseSstpAttrs([]byte{0x00, 0x01}); err == nil {
		t.Fatalf("expected an error for a truncated attribute header")
	}
}

func TestParseSstpAttrsRejectsOutOfBoundsLength(t *testing.T) {
	// Reserved=0, ID=1, Length=0xffff -- body length wildly exceeds what
	// follows.
	buf := []byte{0x00, 0x01, 0xff, 0xff, 0x00}
	if _, err := parseSstpAttrs(buf); err == nil {
		t.Fatalf("expected an error for an out-of-bounds attribute length")
	}
}

func TestParseSstpControlBufferRejectsAttrCountMismatch(t *testing.T) {
	msg := newSstpControlMessage(sstpMsgTypeEchoRequest, []sstpAttr{encapsulatedProtocolIDAttr()})
	b, err := msg.toBytes()
	if err != nil {
		t.Fatalf("toBytes: %v", err)
	}
	body := b[sstpPacketHeaderLen:]

	// Corrupt NumAttrs (the second uint16 of the control header) to claim
	// two attributes when only one is present.
	corrupted := append([]byte(nil), body...)
	corrupted[3] = 2

	if _, err := parseSstpControlBuffer(corrupted); err == nil {
		t.Fatalf("expected an error for a mismatched attribute count")
	}
}

func TestCryptoBindingRequestBodyRoundTrip(t *testing.T) {
	var nonce [32]byte
	for i := range nonce {
		nonce[i] = byte(i)
	}
	in := make([]byte, cryptoBindingRequestBodyLen)
	in[3] = hashProtocolBitmaskSHA256
	copy(in[4:], nonce[:])

	got, err := parseCryptoBindingRequestBody(in)
	if err != nil {
		t.Fatalf("parseCryptoBindingRequestBody: %v", err)
	}
	if got.hashBitmask != hashProtocolBitmaskSHA256 {
		t.Errorf("hashBitmask: got %#x", got.hashBitmask)
	}
	if got.nonce != nonce {
		t.Errorf("nonce mismatch")
	}
}

func TestCryptoBindingRequestBodyRejectsWrongLength(t *testing.T) {
	if _, err := parseCryptoBindingRequestBody(make([]byte, cryptoBindingRequestBodyLen-1)); err == nil {
		t.Fatalf("expected an error for a short body")
	}
}

func TestCryptoBindingBodyRoundTrip(t *testing.T) {
	var body cryptoBindingBody
	body.hashProtocol = hashProtocolSHA1
	for i := range body.nonce {
		body.nonce[i] = byte(i)
	}
	for i := range body.certHash {
		body.certHash[i] = byte(0xaa)
	}
	for i := range body.compoundMac {
		body.compoundMac[i] = byte(0x55)
	}

	b := body.toBytes()
	if len(b) != cryptoBindingBodyLen {
		t.Fatalf("encoded length: got %d want %d", len(b), cryptoBindingBodyLen)
	}

	got, err := parseCryptoBindingBody(b)
	if err != nil {
		t.Fatalf("parseCryptoBindingBody: %v", err)
	}
	if got.hashProtocol != body.hashProtocol || got.nonce != body.nonce ||
		got.certHash != body.certHash || got.compoundMac != body.compoundMac {
		t.Errorf("round trip mismatch: got %+v want %+v", got, body)
	}
}

func TestEncapsulatedProtocolIDAttr(t *testing.T) {
	a := encapsulatedProtocolIDAttr()
	if a.header.ID != sstpAttrIDEncapsulatedProtocolID {
		t.Errorf("unexpected attribute ID %v", a.header.ID)
	}
	if len(a.body) != 2 {
		t.Fatalf("unexpected body length %d", len(a.body))
	}
}

func TestParseSstpPacketHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := parseSstpPacketHeader([]byte{0x10, 0x00}); err == nil {
		t.Fatalf("expected an error for a short packet header")
	}
}
