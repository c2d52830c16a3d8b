package crypto

import (
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF is the two-output Noise HKDF: output1 || output2 = HKDF(salt=ck, ikm)
// with an empty info string. Each output is the hash length.
//
// Noise defines HKDF as HMAC(HMAC(ck, ikm), 0x01) and
// HMAC(HMAC(ck, ikm), output1 || 0x02), which is exactly RFC 5869
// extract-then-expand, so the x/crypto implementation is used as is.
func HKDF(newHash func() hash.Hash, chainingKey, ikm []byte) ([]byte, []byte, error) {
	hashLen := newHash().Size()
	out := make([]byte, 2*hashLen)
	if _, err := io.ReadFull(hkdf.New(newHash, ikm, chainingKey, nil), out); err != nil {
		return nil, nil, err
	}
	return out[:hashLen], out[hashLen:], nil
}
