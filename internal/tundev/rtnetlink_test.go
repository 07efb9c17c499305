package tundev

import (
	"reflect"
	"testing"

	"golang.org/x/sys/unix"
)

func TestEncodeRTAttrRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		attrType uint16
		data     []byte
	}{
		{"even length", 1, []byte{10, 0, 0, 1}},
		{"odd length needs padding", 3, []byte("tun")},
		{"empty value", 7, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			encoded := encodeRTAttr(c.attrType, c.data)
			if len(encoded)%rtaAlignTo != 0 {
				t.Fatalf("encoded attr not 4-byte aligned: %d bytes", len(encoded))
			}

			got, err := parseRTAttrs(encoded)
			if err != nil {
				t.Fatalf("parseRTAttrs: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 attribute, got %d", len(got))
			}
			if got[0].Type != c.attrType {
				t.Errorf("type: got %d want %d", got[0].Type, c.attrType)
			}
			if !reflect.DeepEqual(got[0].Value, c.data) && !(len(got[0].Value) == 0 && len(c.data) == 0) {
				t.Errorf("value: got %v want %v", got[0].Value, c.data)
			}
		})
	}
}

func TestEncodeRTAttrUint32(t *testing.T) {
	encoded := encodeRTAttrUint32(4, 1500)
	attrs, err := parseRTAttrs(encoded)
	if err != nil {
		t.Fatalf("parseRTAttrs: %v", err)
	}
	if len(attrs) != 1 || len(attrs[0].Value) != 4 {
		t.Fatalf("unexpected attrs: %+v", attrs)
	}
}

func TestParseRTAttrsMultiple(t *testing.T) {
	a := encodeRTAttr(1, []byte{1, 2, 3})
	b := encodeRTAttr(2, []byte{4, 5})
	buf := append(append([]byte{}, a...), b...)

	attrs, err := parseRTAttrs(buf)
	if err != nil {
		t.Fatalf("parseRTAttrs: %v", err)
	}
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Type != 1 || attrs[1].Type != 2 {
		t.Errorf("unexpected types: %+v", attrs)
	}
}

func TestParseRTAttrsShortHeader(t *testing.T) {
	if _, err := parseRTAttrs([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for a short rtattr header")
	}
}

func TestIfAddrMsgEncodedLength(t *testing.T) {
	msg := ifAddrMsg{Family: 2, PrefixLen: 32, Scope: 0, Index: 7}
	b := msg.toBytes()
	if len(b) != ifAddrMsgLen {
		t.Fatalf("expected %d bytes, got %d", ifAddrMsgLen, len(b))
	}
}

func TestRtMsgEncodedLength(t *testing.T) {
	msg := rtMsg{Family: 2, DstLen: 0, Table: 254, Protocol: 4, Scope: 253, Type: 1}
	b := msg.toBytes()
	if len(b) != rtMsgLen {
		t.Fatalf("expected %d bytes, got %d", rtMsgLen, len(b))
	}
}

func TestIfInfoMsgEncodedLength(t *testing.T) {
	msg := ifInfoMsg{Family: 0, Index: 3, Flags: 1, Change: 1}
	b := msg.toBytes()
	if len(b) != ifInfoMsgLen {
		t.Fatalf("expected %d bytes, got %d", ifInfoMsgLen, len(b))
	}
}

func TestParseCIDR(t *testing.T) {
	family, dst, prefix, err := parseCIDR("192.168.1.0/24")
	if err != nil {
		t.Fatalf("parseCIDR: %v", err)
	}
	if family != unix.AF_INET {
		t.Errorf("unexpected family: %d", family)
	}
	if prefix != 24 {
		t.Errorf("unexpected prefix: %d", prefix)
	}
	if !reflect.DeepEqual(dst, []byte{192, 168, 1, 0}) {
		t.Errorf("unexpected dst: %v", dst)
	}
}

func TestParseCIDRInvalid(t *testing.T) {
	if _, _, _, err := parseCIDR("not-a-cidr"); err == nil {
		t.Fatalf("expected an error for an invalid CIDR")
	}
}
