package sstp

import (
	"bytes"
	"crypto/des"
	"crypto/sha1"

	"golang.org/x/crypto/md4"
)

// RFC 2759 / RFC 3079 MS-CHAPv2 primitives. The stdlib has no MD4, so this
// leans on golang.org/x/crypto/md4, which the corpus already pulls in for
// SSH host-key verification elsewhere.

func utf16LEPassword(password string) []byte {
	r := []rune(password)
	out := make([]byte, 0, len(r)*2)
	for _, c := range r {
		out = append(out, byte(c), byte(c>>8))
	}
	return out
}

func ntPasswordHash(password string) []byte {
	h := md4.New()
	h.Write(utf16LEPassword(password))
	return h.Sum(nil)
}

func challengeHash(peerChallenge, authChallenge [16]byte, username string) []byte {
	h := sha1.New()
	h.Write(peerChallenge[:])
	h.Write(authChallenge[:])
	h.Write([]byte(username))
	return h.Sum(nil)[:8]
}

// desEncryptBlock encrypts an 8-byte block with a 7-byte DES key expanded
// to 8 bytes per RFC 2759's parity-bit insertion.
func desEncryptBlock(key7 []byte, block []byte) []byte {
	key8 := make([]byte, 8)
	key8[0] = key7[0]
	key8[1] = byte(key7[0]<<7) | byte(key7[1]>>1)
	key8[2] = byte(key7[1]<<6) | byte(key7[2]>>2)
	key8[3] = byte(key7[2]<<5) | byte(key7[3]>>3)
	key8[4] = byte(key7[3]<<4) | byte(key7[4]>>4)
	key8[5] = byte(key7[4]<<3) | byte(key7[5]>>5)
	key8[6] = byte(key7[5]<<2) | byte(key7[6]>>6)
	key8[7] = byte(key7[6] << 1)
	for i := 0; i < 8; i++ {
		key8[i] = setDESParity(key8[i])
	}
	block8, err := des.NewCipher(key8)
	if err != nil {
		panic(err) // 8-byte key is always valid for DES
	}
	out := make([]byte, 8)
	block8.Encrypt(out, block)
	return out
}

func setDESParity(b byte) byte {
	var ones int
	for i := 1; i < 8; i++ {
		if b&(1<<uint(i)) != 0 {
			ones++
		}
	}
	if ones%2 == 0 {
		return b | 1
	}
	return b &^ 1
}

// challengeResponse computes the 24-byte NT-Response's DES-encrypted
// portion from an 8-byte challenge hash and a 16-byte password hash.
func challengeResponse(challenge []byte, passwordHash []byte) []byte {
	padded := make([]byte, 21)
	copy(padded, passwordHash)
	out := make([]byte, 24)
	copy(out[0:8], desEncryptBlock(padded[0:7], challenge))
	copy(out[8:16], desEncryptBlock(padded[7:14], challenge))
	copy(out[16:24], desEncryptBlock(padded[14:21], challenge))
	return out
}

// generateNTResponse is the RFC 2759 GenerateNTResponse function.
func generateNTResponse(authChallenge, peerChallenge [16]byte, username, password string) []byte {
	ch := challengeHash(peerChallenge, authChallenge, username)
	pwHash := ntPasswordHash(password)
	return challengeResponse(ch, pwHash)
}

// magic1/magic2 are the fixed strings from RFC 2759 used to derive the
// authenticator response.
var magic1 = []byte{
	0x4D, 0x61, 0x67, 0x69, 0x63, 0x20, 0x73, 0x65, 0x72, 0x76, 0x65, 0x72, 0x20, 0x74, 0x6F, 0x20,
	0x63, 0x6C, 0x69, 0x65, 0x6E, 0x74, 0x20, 0x73, 0x69, 0x67, 0x6E, 0x69, 0x6E, 0x67, 0x20, 0x63,
	0x6F, 0x6E, 0x73, 0x74, 0x61, 0x6E, 0x74,
}

var magic2 = []byte{
	0x50, 0x61, 0x64, 0x20, 0x74, 0x6F, 0x20, 0x6D, 0x61, 0x6B, 0x65, 0x20, 0x69, 0x74, 0x20, 0x64,
	0x6F, 0x20, 0x6D, 0x6F, 0x72, 0x65, 0x20, 0x74, 0x68, 0x61, 0x6E, 0x20, 0x6F, 0x6E, 0x65, 0x20,
	0x69, 0x74, 0x65, 0x72, 0x61, 0x74, 0x69, 0x6F, 0x6E,
}

func ntPasswordHashHash(passwordHash []byte) []byte {
	h := md4.New()
	h.Write(passwordHash)
	return h.Sum(nil)
}

// generateAuthenticatorResponse is the RFC 2759 GenerateAuthenticatorResponse
// function; its output is compared against the server's Success message.
func generateAuthenticatorResponse(password string, ntResponse []byte, peerChallenge, authChallenge [16]byte, username string) []byte {
	pwHash := ntPasswordHash(password)
	pwHashHash := ntPasswordHashHash(pwHash)

	h := sha1.New()
	h.Write(pwHashHash)
	h.Write(ntResponse)
	h.Write(magic1)
	digest := h.Sum(nil)

	ch := challengeHash(peerChallenge, authChallenge, username)

	h2 := sha1.New()
	h2.Write(digest)
	h2.Write(ch)
	h2.Write(magic2)
	return h2.Sum(nil)
}

// getMasterKey is the RFC 3079 GetMasterKey function: derives the 16-byte
// master key from the NT password hash hash and the 24-byte NT-Response.
func getMasterKey(passwordHash []byte, ntResponse []byte) []byte {
	pwHashHash := ntPasswordHashHash(passwordHash)

	h := sha1.New()
	h.Write(pwHashHash)
	h.Write(ntResponse)
	h.Write([]byte("This is the MPPE Master Key"))
	return h.Sum(nil)[:16]
}

// deriveHLAK computes the Higher-Layer Authentication Key per §4.7: the
// RFC 3079 master key derived from the NT-Response and peer/authenticator
// challenges, run through the "This is the MPPE Master Key" constant.
func deriveHLAK(password string, ntResponse []byte, peerChallenge, authChallenge [16]byte, username string) []byte {
	pwHash := ntPasswordHash(password)
	masterKey := getMasterKey(pwHash, ntResponse)

	var shsPad1 [40]byte
	shsPad2 := bytes.Repeat([]byte{0xF2}, 40)

	h := sha1.New()
	h.Write(masterKey)
	h.Write(shsPad1[:])
	h.Write([]byte("This is the MPPE Master Key"))
	h.Write(shsPad2)
	return h.Sum(nil)[:16]
}
