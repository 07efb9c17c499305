package sstp

import (
	"bytes"
	"testing"
)

func TestDeriveCMKDeterministic(t *testing.T) {
	hlak := bytes.Repeat([]byte{0x11}, 32)

	a := deriveCMK(hlak, hashProtocolSHA256)
	b := deriveCMK(hlak, hashProtocolSHA256)
	if !bytes.Equal(a, b) {
		t.Fatalf("deriveCMK is not deterministic: %v != %v", a, b)
	}

	sha1CMK := deriveCMK(hlak, hashProtocolSHA1)
	if bytes.Equal(a, sha1CMK) {
		t.Fatalf("expected different CMKs for different hash protocols")
	}
}

func TestDeriveCMKDiffersWithKey(t *testing.T) {
	a := deriveCMK(bytes.Repeat([]byte{0x01}, 32), hashProtocolSHA256)
	b := deriveCMK(bytes.Repeat([]byte{0x02}, 32), hashProtocolSHA256)
	if bytes.Equal(a, b) {
		t.Fatalf("expected different CMKs for different HLAKs")
	}
}

func TestCertHashPaddedSizes(t *testing.T) {
	leaf := []byte("fake certificate DER bytes")

	sha256Hash := certHashPadded(leaf, hashProtocolSHA256)
	if len(sha256Hash) != 32 {
		t.Fatalf("unexpected length: %d", len(sha256Hash))
	}

	sha1Hash := certHashPadded(leaf, hashProtocolSHA1)
	if len(sha1Hash) != 32 {
		t.Fatalf("unexpected length: %d", len(sha1Hash))
	}
	// SHA1 digests are 20 bytes; the remaining 12 bytes of the 32-byte
	// field must be zero padding.
	for i := 20; i < 32; i++ {
		if sha1Hash[i] != 0 {
			t.Errorf("expected zero padding at byte %d, got %#x", i, sha1Hash[i])
		}
	}
	if bytes.Equal(sha1Hash[:20], make([]byte, 20)) {
		t.Errorf("expected a non-zero digest in the first 20 bytes")
	}
}

func TestComputeCompoundMacDeterministic(t *testing.T) {
	hlak := bytes.Repeat([]byte{0x22}, 32)
	packet := []byte("serialized call-connected packet with mac zeroed")

	a := computeCompoundMac(hlak, hashProtocolSHA256, packet)
	b := computeCompoundMac(hlak, hashProtocolSHA256, packet)
	if !bytes.Equal(a, b) {
		t.Fatalf("computeCompoundMac is not deterministic")
	}
	if len(a) != 32 {
		t.Fatalf("unexpected mac length: %d", len(a))
	}

	changed := computeCompoundMac(hlak, hashProtocolSHA256, append(append([]byte{}, packet...), 0xff))
	if bytes.Equal(a, changed) {
		t.Errorf("expected mac to change when the packet bytes change")
	}
}

func TestBuildCryptoBindingAttr(t *testing.T) {
	hlak := bytes.Repeat([]byte{0x33}, 32)
	var nonce, certHash [32]byte
	for i := range nonce {
		nonce[i] = byte(i)
	}
	for i := range certHash {
		certHash[i] = byte(0xaa)
	}

	var assembledZeroed []byte
	assemble := func(body *cryptoBindingBody) ([]byte, error) {
		assembledZeroed = append([]byte(nil), body.toBytes()...)
		return assembledZeroed, nil
	}

	attr, err := buildCryptoBindingAttr(hlak, hashProtocolSHA256, nonce, certHash, assemble)
	if err != nil {
		t.Fatalf("buildCryptoBindingAttr: %v", err)
	}
	if attr.header.ID != sstpAttrIDCryptoBinding {
		t.Fatalf("unexpected attribute ID %v", attr.header.ID)
	}

	got, err := parseCryptoBindingBody(attr.body)
	if err != nil {
		t.Fatalf("parseCryptoBindingBody: %v", err)
	}
	if got.hashProtocol != hashProtocolSHA256 {
		t.Errorf("hashProtocol: got %v want %v", got.hashProtocol, hashProtocolSHA256)
	}
	if got.nonce != nonce {
		t.Errorf("nonce mismatch")
	}
	if got.certHash != certHash {
		t.Errorf("certHash mismatch")
	}

	wantMac := computeCompoundMac(hlak, hashProtocolSHA256, assembledZeroed)
	if !bytes.Equal(got.compoundMac[:], wantMac) {
		t.Errorf("compoundMac mismatch: got %v want %v", got.compoundMac, wantMac)
	}
}

func TestCmacSizeOf(t *testing.T) {
	if cmacSizeOf(hashProtocolSHA256) != 0x2000 {
		t.Errorf("unexpected sha256 cmac size: %#x", cmacSizeOf(hashProtocolSHA256))
	}
	if cmacSizeOf(hashProtocolSHA1) != 0x1400 {
		t.Errorf("unexpected sha1 cmac size: %#x", cmacSizeOf(hashProtocolSHA1))
	}
}

func TestHashProtocolFromBitmask(t *testing.T) {
	cases := []struct {
		name   string
		mask   uint8
		want   hashProtocol
		wantOK bool
	}{
		{"sha256 preferred over sha1", hashProtocolBitmaskSHA256 | hashProtocolBitmaskSHA1, hashProtocolSHA256, true},
		{"sha256 only", hashProtocolBitmaskSHA256, hashProtocolSHA256, true},
		{"sha1 only", hashProtocolBitmaskSHA1, hashProtocolSHA1, true},
		{"none", 0, hashProtocolNone, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := hashProtocolFromBitmask(c.mask)
			if got != c.want || ok != c.wantOK {
				t.Errorf("got (%v, %v) want (%v, %v)", got, ok, c.want, c.wantOK)
			}
		})
	}
}
