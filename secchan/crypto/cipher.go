package crypto

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"math"
)

const (
	// KeySize is the symmetric key size for both supported ciphers.
	KeySize = 32
	// TagSize is the authentication tag appended to every ciphertext.
	TagSize = 16
	// MaxMessageLen bounds any ciphertext, and every Noise message.
	MaxMessageLen = 65535
	// MaxNonce is reserved and never used to encrypt.
	MaxNonce = math.MaxUint64

	nonceSize = 12
)

var (
	ErrAuthenticationFailed = errors.New("crypto: message authentication failed")
	ErrNonceExhausted       = errors.New("crypto: nonce counter exhausted")
	ErrMessageTooLarge      = errors.New("crypto: message exceeds 65535 bytes")
	ErrInvalidKeySize       = errors.New("crypto: invalid key size")
	ErrCipherDestroyed      = errors.New("crypto: cipher session destroyed")
)

// CipherSession is one direction of authenticated encryption. The nonce is
// the counter itself, serialized after four zero bytes in the suite's byte
// order, so a counter value is never used twice with the same key.
//
// A CipherSession is not safe for concurrent use.
type CipherSession struct {
	aead    cipher.AEAD
	newAEAD func(key []byte) (cipher.AEAD, error)
	order   binary.ByteOrder
	n       uint64
	nonce   [nonceSize]byte
}

// Encrypt appends the ciphertext of plaintext (len(plaintext)+TagSize
// bytes) to out and advances the nonce. To encrypt in place into a
// preallocated region, pass region[:0] with cap(region) >= the ciphertext.
func (c *CipherSession) Encrypt(out, plaintext []byte) ([]byte, error) {
	return c.EncryptWithAD(out, nil, plaintext)
}

// Decrypt appends the plaintext of ciphertext to out. The nonce advances
// only if the tag verifies.
func (c *CipherSession) Decrypt(out, ciphertext []byte) ([]byte, error) {
	return c.DecryptWithAD(out, nil, ciphertext)
}

func (c *CipherSession) EncryptWithAD(out, ad, plaintext []byte) ([]byte, error) {
	if c.aead == nil {
		return nil, ErrCipherDestroyed
	}
	if c.n == MaxNonce {
		return nil, ErrNonceExhausted
	}
	if len(plaintext)+TagSize > MaxMessageLen {
		return nil, ErrMessageTooLarge
	}
	out = c.aead.Seal(out, c.nextNonce(), plaintext, ad)
	c.n++
	return out, nil
}

func (c *CipherSession) DecryptWithAD(out, ad, ciphertext []byte) ([]byte, error) {
	if c.aead == nil {
		return nil, ErrCipherDestroyed
	}
	if c.n == MaxNonce {
		return nil, ErrNonceExhausted
	}
	if len(ciphertext) > MaxMessageLen {
		return nil, ErrMessageTooLarge
	}
	if len(ciphertext) < TagSize {
		return nil, ErrAuthenticationFailed
	}
	out, err := c.aead.Open(out, c.nextNonce(), ciphertext, ad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	c.n++
	return out, nil
}

// Nonce returns the counter value the next operation will use.
func (c *CipherSession) Nonce() uint64 { return c.n }

// SetNonce moves the counter. It exists for diagnostics and tests; moving it
// backwards reuses nonces.
func (c *CipherSession) SetNonce(n uint64) { c.n = n }

// HasKey reports whether the session can still encrypt and decrypt.
func (c *CipherSession) HasKey() bool { return c != nil && c.aead != nil }

// Overhead returns the authentication tag overhead.
func (c *CipherSession) Overhead() int { return TagSize }

// Destroy drops the key; every later call fails with ErrCipherDestroyed.
func (c *CipherSession) Destroy() {
	c.aead = nil
	clear(c.nonce[:])
}

// Rekey replaces the key with the first KeySize bytes of the encryption of
// KeySize zero bytes under the reserved nonce MaxNonce. The counter is
// kept. Both ends must rekey at the same point of the stream.
func (c *CipherSession) Rekey() error {
	if c.aead == nil {
		return ErrCipherDestroyed
	}
	var zeros [KeySize]byte
	c.order.PutUint64(c.nonce[4:], MaxNonce)
	out := c.aead.Seal(nil, c.nonce[:], zeros[:], nil)
	aead, err := c.newAEAD(out[:KeySize])
	clear(out)
	if err != nil {
		return err
	}
	c.aead = aead
	return nil
}

func (c *CipherSession) nextNonce() []byte {
	c.order.PutUint64(c.nonce[4:], c.n)
	return c.nonce[:]
}
