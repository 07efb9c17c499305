package sstp

import (
	"bytes"
	"testing"
)

func TestPppOptionRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		opt  pppOption
	}{
		{"mru", pppOption{Type: lcpOptMRU, Value: []byte{0x05, 0xd4}}},
		{"empty value", pppOption{Type: 0x07, Value: nil}},
		{"auth proto", pppOption{Type: lcpOptAuthProto, Value: []byte{0xc0, 0x23}}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := c.opt.toBytes()
			if len(b) != c.opt.totalLen() {
				t.Fatalf("totalLen: got %d want %d", c.opt.totalLen(), len(b))
			}

			opts, err := parsePppOptions(b)
			if err != nil {
				t.Fatalf("parsePppOptions: %v", err)
			}
			if len(opts) != 1 {
				t.Fatalf("expected 1 option, got %d", len(opts))
			}
			if opts[0].Type != c.opt.Type {
				t.Errorf("type: got %d want %d", opts[0].Type, c.opt.Type)
			}
			if !bytes.Equal(opts[0].Value, c.opt.Value) && !(len(opts[0].Value) == 0 && len(c.opt.Value) == 0) {
				t.Errorf("value: got %v want %v", opts[0].Value, c.opt.Value)
			}
		})
	}
}

func TestParsePppOptionsMultiple(t *testing.T) {
	a := pppOption{Type: lcpOptMRU, Value: []byte{0x05, 0xd4}}
	b := pppOption{Type: lcpOptAuthProto, Value: []byte{0xc0, 0x23}}

	buf := append(append([]byte{}, a.toBytes()...), b.toBytes()...)
	opts, err := parsePppOptions(buf)
	if err != nil {
		t.Fatalf("parsePppOptions: %v", err)
	}
	if len(opts) != 2 {
		t.Fatalf("expected 2 options, got %d", len(opts))
	}
	if opts[0].Type != lcpOptMRU || opts[1].Type != lcpOptAuthProto {
		t.Errorf("unexpected option types: %+v", opts)
	}
}

func TestParsePppOptionsRejectsShortHeader(t *testing.T) {
	if _, err := parsePppOptions([]byte{0x01}); err == nil {
		t.Fatalf("expected an error for a truncated option header")
	}
}

func TestParsePppOptionsRejectsOutOfBoundsLength(t *testing.T) {
	buf := []byte{lcpOptMRU, 0xff}
	if _, err := parsePppOptions(buf); err == nil {
		t.Fatalf("expected an error for an out-of-bounds option length")
	}
}

func TestFindOption(t *testing.T) {
	opts := []pppOption{
		{Type: lcpOptMRU, Value: []byte{0x05, 0xd4}},
		{Type: lcpOptAuthProto, Value: []byte{0xc0, 0x23}},
	}

	got := findOption(opts, lcpOptAuthProto)
	if got == nil {
		t.Fatalf("expected to find option %d", lcpOptAuthProto)
	}
	if !bytes.Equal(got.Value, []byte{0xc0, 0x23}) {
		t.Errorf("unexpected value: %v", got.Value)
	}

	if findOption(opts, 0xee) != nil {
		t.Errorf("expected nil for an absent option type")
	}
}

// stripToFrame peels off the outer SSTP packet header and the inner PPP
// HDLC/protocol header that toDataBytes prepends, leaving the bytes
// parsePppFrame expects to start at.
func stripToFrame(b []byte) []byte {
	return b[sstpPacketHeaderLen+pppHeaderLen:]
}

func TestConfigureFrameRoundTrip(t *testing.T) {
	opts := []pppOption{
		{Type: lcpOptMRU, Value: []byte{0x05, 0xd4}},
		{Type: lcpOptAuthProto, Value: []byte{0xc0, 0x23}},
	}
	frame := newConfigureFrame(pppCodeConfigureRequest, 7, opts)

	b, err := frame.toDataBytes(pppProtocolLCP)
	if err != nil {
		t.Fatalf("toDataBytes: %v", err)
	}

	got, err := parsePppFrame(stripToFrame(b))
	if err != nil {
		t.Fatalf("parsePppFrame: %v", err)
	}
	if got.header.Code != pppCodeConfigureRequest {
		t.Errorf("code: got %v want %v", got.header.Code, pppCodeConfigureRequest)
	}
	if got.header.ID != 7 {
		t.Errorf("id: got %d want 7", got.header.ID)
	}
	if len(got.options) != 2 {
		t.Fatalf("options: got %d want 2", len(got.options))
	}
	if got.options[0].Type != lcpOptMRU || got.options[1].Type != lcpOptAuthProto {
		t.Errorf("unexpected options: %+v", got.options)
	}
}

func TestRawFrameRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	frame := newRawFrame(pppCodeEchoRequest, 3, payload)

	b, err := frame.toDataBytes(pppProtocolLCP)
	if err != nil {
		t.Fatalf("toDataBytes: %v", err)
	}

	got, err := parsePppFrame(stripToFrame(b))
	if err != nil {
		t.Fatalf("parsePppFrame: %v", err)
	}
	if got.header.Code != pppCodeEchoRequest {
		t.Errorf("code: got %v want %v", got.header.Code, pppCodeEchoRequest)
	}
	if !bytes.Equal(got.bodyBytes(), payload) {
		t.Errorf("body: got %v want %v", got.bodyBytes(), payload)
	}
}

func TestParsePppFrameRejectsShortHeader(t *testing.T) {
	if _, err := parsePppFrame([]byte{0x01, 0x02}); err == nil {
		t.Fatalf("expected an error for a truncated frame header")
	}
}

func TestParsePppFrameRejectsLengthMismatch(t *testing.T) {
	hdr := pppFrameHeader{Code: pppCodeTerminateRequest, ID: 1, Length: 0xff}
	b := append([]byte{byte(hdr.Code), hdr.ID, 0x00, 0xff}, []byte{0x01, 0x02}...)
	if _, err := parsePppFrame(b); err == nil {
		t.Fatalf("expected an error for a frame length exceeding the buffer")
	}
}

// TestEncodeIPDatagramHasNoFrameHeader checks that an IP datagram carries
// only the HDLC/protocol header, with no pppFrameHeader in between it and
// the L3 payload -- unlike Configure-*/Terminate-*/Echo frames.
func TestEncodeIPDatagramHasNoFrameHeader(t *testing.T) {
	payload := []byte{0x45, 0x00, 0x00, 0x14}
	b := encodeIPDatagram(pppProtocolIPv4, payload)

	wantLen := sstpPacketHeaderLen + pppHeaderLen + len(payload)
	if len(b) != wantLen {
		t.Fatalf("unexpected length: got %d want %d", len(b), wantLen)
	}
	if !bytes.Equal(stripToFrame(b), payload) {
		t.Errorf("payload should immediately follow the HDLC/protocol header: got %v want %v", stripToFrame(b), payload)
	}
}

func TestEncodeIPDatagramIPv6(t *testing.T) {
	payload := []byte{0x60, 0x00, 0x00, 0x00}
	b := encodeIPDatagram(pppProtocolIPv6, payload)

	wantLen := sstpPacketHeaderLen + pppHeaderLen + len(payload)
	if len(b) != wantLen {
		t.Fatalf("unexpected length: got %d want %d", len(b), wantLen)
	}
	if !bytes.Equal(stripToFrame(b), payload) {
		t.Errorf("payload should immediately follow the HDLC/protocol header: got %v want %v", stripToFrame(b), payload)
	}
}

func TestIsConfigureCode(t *testing.T) {
	if !isConfigureCode(pppCodeConfigureRequest) {
		t.Errorf("expected pppCodeConfigureRequest to be a configure code")
	}
	if isConfigureCode(pppCodeTerminateRequest) {
		t.Errorf("did not expect pppCodeTerminateRequest to be a configure code")
	}
}
