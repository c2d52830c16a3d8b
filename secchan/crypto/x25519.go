package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// DHLen is the size of X25519 public keys, private keys and shared secrets.
const DHLen = curve25519.PointSize

var (
	ErrInvalidPublicKey = errors.New("crypto: invalid X25519 public key")
	ErrInvalidKeypair   = errors.New("crypto: invalid X25519 key pair")
)

// DHKey is an X25519 key pair.
type DHKey struct {
	Private []byte
	Public  []byte
}

// GenerateKeypair generates a new X25519 key pair. A nil reader means
// crypto/rand.
func GenerateKeypair(random io.Reader) (DHKey, error) {
	if random == nil {
		random = rand.Reader
	}
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(random, priv); err != nil {
		return DHKey{}, err
	}
	// Clamp private key per RFC 7748
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return DHKey{}, err
	}
	return DHKey{Private: priv, Public: pub}, nil
}

// KeypairFromPrivate rebuilds the key pair for a stored private key.
func KeypairFromPrivate(priv []byte) (DHKey, error) {
	if len(priv) != curve25519.ScalarSize {
		return DHKey{}, ErrInvalidKeypair
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return DHKey{}, ErrInvalidKeypair
	}
	return DHKey{Private: append([]byte(nil), priv...), Public: pub}, nil
}

// Validate checks that the public half matches the private half.
func (k DHKey) Validate() error {
	if len(k.Private) != DHLen || len(k.Public) != DHLen {
		return ErrInvalidKeypair
	}
	pub, err := curve25519.X25519(k.Private, curve25519.Basepoint)
	if err != nil || subtle.ConstantTimeCompare(pub, k.Public) != 1 {
		return ErrInvalidKeypair
	}
	return nil
}

// Wipe zeroes the private key.
func (k DHKey) Wipe() {
	clear(k.Private)
}

// DH computes the X25519 shared secret.
// Low-order peer points, which yield an all-zero secret, are rejected.
func DH(privateKey, peerPublicKey []byte) ([]byte, error) {
	if len(peerPublicKey) != DHLen {
		return nil, ErrInvalidPublicKey
	}
	shared, err := curve25519.X25519(privateKey, peerPublicKey)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return shared, nil
}
