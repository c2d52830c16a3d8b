package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20poly1305"
)

// DefaultProtocol is the protocol name used when none is configured.
const DefaultProtocol = "Noise_XX_25519_ChaChaPoly_SHA256"

var ErrUnsupportedProtocol = errors.New("crypto: unsupported protocol name")

// Suite is the parsed form of a Noise protocol name such as
// "Noise_XX_25519_ChaChaPoly_SHA256".
type Suite struct {
	name    string
	pattern string
	dh      string
	cipher  string
	hash    string

	newAEAD    func(key []byte) (cipher.AEAD, error)
	nonceOrder binary.ByteOrder
	newHash    func() hash.Hash
}

// ParseSuite parses and validates a protocol name. Only the 25519 DH
// function is available; ciphers are ChaChaPoly and AESGCM; hashes are
// SHA256, SHA512, BLAKE2s and BLAKE2b.
func ParseSuite(name string) (Suite, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 5 || parts[0] != "Noise" {
		return Suite{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, name)
	}
	s := Suite{name: name, pattern: parts[1], dh: parts[2], cipher: parts[3], hash: parts[4]}

	if s.dh != "25519" {
		return Suite{}, fmt.Errorf("%w: dh %q", ErrUnsupportedProtocol, s.dh)
	}

	switch s.cipher {
	case "ChaChaPoly":
		s.newAEAD = chacha20poly1305.New
		s.nonceOrder = binary.LittleEndian
	case "AESGCM":
		s.newAEAD = newAESGCM
		s.nonceOrder = binary.BigEndian
	default:
		return Suite{}, fmt.Errorf("%w: cipher %q", ErrUnsupportedProtocol, s.cipher)
	}

	switch s.hash {
	case "SHA256":
		s.newHash = sha256.New
	case "SHA512":
		s.newHash = sha512.New
	case "BLAKE2s":
		s.newHash = newBLAKE2s
	case "BLAKE2b":
		s.newHash = newBLAKE2b
	default:
		return Suite{}, fmt.Errorf("%w: hash %q", ErrUnsupportedProtocol, s.hash)
	}
	return s, nil
}

// MustParseSuite is ParseSuite for constant protocol names.
func MustParseSuite(name string) Suite {
	s, err := ParseSuite(name)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Suite) Name() string               { return s.name }
func (s Suite) Pattern() string            { return s.pattern }
func (s Suite) CipherName() string         { return s.cipher }
func (s Suite) HashName() string           { return s.hash }
func (s Suite) NewHash() hash.Hash         { return s.newHash() }
func (s Suite) HashLen() int               { return s.newHash().Size() }
func (s Suite) IsZero() bool               { return s.name == "" }
func (s Suite) String() string             { return s.name }
func (s Suite) HashFunc() func() hash.Hash { return s.newHash }

// Hash returns HASH(data...).
func (s Suite) Hash(data ...[]byte) []byte {
	h := s.newHash()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// HKDF runs the two-output Noise HKDF with the suite hash.
func (s Suite) HKDF(chainingKey, ikm []byte) ([]byte, []byte, error) {
	return HKDF(s.newHash, chainingKey, ikm)
}

// NewCipherSession keys a new cipher at nonce 0. Keys longer than KeySize
// (64-byte hash outputs) are truncated as the Noise framework requires.
func (s Suite) NewCipherSession(key []byte) (*CipherSession, error) {
	if len(key) < KeySize {
		return nil, ErrInvalidKeySize
	}
	aead, err := s.newAEAD(key[:KeySize])
	if err != nil {
		return nil, err
	}
	return &CipherSession{aead: aead, newAEAD: s.newAEAD, order: s.nonceOrder}, nil
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func newBLAKE2s() hash.Hash {
	h, _ := blake2s.New256(nil)
	return h
}

func newBLAKE2b() hash.Hash {
	h, _ := blake2b.New512(nil)
	return h
}
