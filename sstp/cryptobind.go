package sstp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"hash"
)

// cmkLabel is the fixed ASCII label mixed into the CMK derivation, per
// §4.8's Call-Connected compound MAC recipe.
const cmkLabel = "SSTP inner method derived CMK"

func newHMAC(hp hashProtocol, key []byte) hash.Hash {
	if hp == hashProtocolSHA256 {
		return hmac.New(sha256.New, key)
	}
	return hmac.New(sha1.New, key)
}

func cmacSizeOf(hp hashProtocol) uint16 {
	if hp == hashProtocolSHA256 {
		return 0x2000
	}
	return 0x1400
}

func digestSizeOf(hp hashProtocol) int {
	if hp == hashProtocolSHA256 {
		return sha256.Size
	}
	return sha1.Size
}

// deriveCMK computes the Compound MAC Key from the MS-CHAPv2 HLAK, per the
// fixed label/size/trailer recipe in §4.8.
func deriveCMK(hlak []byte, hp hashProtocol) []byte {
	h := newHMAC(hp, hlak)
	h.Write([]byte(cmkLabel))
	var sizeLE [2]byte
	binary.LittleEndian.PutUint16(sizeLE[:], cmacSizeOf(hp))
	h.Write(sizeLE[:])
	h.Write([]byte{0x01})
	return h.Sum(nil)
}

// certHashPadded hashes the server leaf certificate DER per hp and pads the
// digest with trailing zeros to 32 bytes, matching the Crypto-Binding body
// layout regardless of which digest was negotiated.
func certHashPadded(leafDER []byte, hp hashProtocol) [32]byte {
	var out [32]byte
	if hp == hashProtocolSHA256 {
		sum := sha256.Sum256(leafDER)
		copy(out[:], sum[:])
	} else {
		sum := sha1.Sum(leafDER)
		copy(out[:], sum[:])
	}
	return out
}

// computeCompoundMac computes the Crypto-Binding.compoundMac field: HMAC
// over the fully serialized Call-Connected packet with the compoundMac
// field zeroed, keyed by the CMK derived from hlak.
func computeCompoundMac(hlak []byte, hp hashProtocol, packetWithZeroedMac []byte) []byte {
	cmk := deriveCMK(hlak, hp)
	h := newHMAC(hp, cmk)
	h.Write(packetWithZeroedMac)
	sum := h.Sum(nil)
	out := make([]byte, 32)
	copy(out, sum)
	return out
}

// buildCryptoBindingAttr assembles the Crypto-Binding attribute body for a
// Call-Connected message and computes its compound MAC by re-serializing
// the owning control message with the MAC field zeroed.
//
// assemble is called once, with a zeroed compoundMac, to obtain the bytes
// to MAC; the caller is responsible for re-assembling the final message
// with the returned attribute once the MAC is known.
func buildCryptoBindingAttr(hlak []byte, hp hashProtocol, nonce [32]byte, certHash [32]byte, assemble func(body *cryptoBindingBody) ([]byte, error)) (sstpAttr, error) {
	body := &cryptoBindingBody{
		hashProtocol: hp,
		nonce:        nonce,
		certHash:     certHash,
	}
	zeroed, err := assemble(body)
	if err != nil {
		return sstpAttr{}, err
	}
	mac := computeCompoundMac(hlak, hp, zeroed)
	copy(body.compoundMac[:], mac)
	return newSstpAttr(sstpAttrIDCryptoBinding, body.toBytes()), nil
}

func hashProtocolFromBitmask(bitmask uint8) (hashProtocol, bool) {
	if bitmask&hashProtocolBitmaskSHA256 != 0 {
		return hashProtocolSHA256, true
	}
	if bitmask&hashProtocolBitmaskSHA1 != 0 {
		return hashProtocolSHA1, true
	}
	return hashProtocolNone, false
}
