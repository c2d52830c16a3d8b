package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

var (
	ErrInvalidPublicKey  = errors.New("identity: invalid Ed25519 public key size")
	ErrInvalidPrivateKey = errors.New("identity: invalid Ed25519 private key size")
	ErrInvalidSeed       = errors.New("identity: invalid Ed25519 seed size")
)

// KeyPair holds an Ed25519 keypair used for peer identity.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

func NewKeyPair(publicKey, privateKey []byte) (KeyPair, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return KeyPair{}, ErrInvalidPublicKey
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return KeyPair{}, ErrInvalidPrivateKey
	}
	return KeyPair{PublicKey: ed25519.PublicKey(publicKey), PrivateKey: ed25519.PrivateKey(privateKey)}, nil
}

// KeyPairFromSeed rebuilds a keypair from its 32-byte seed.
func KeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, ErrInvalidSeed
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return KeyPair{PublicKey: priv.Public().(ed25519.PublicKey), PrivateKey: priv}, nil
}

func (kp KeyPair) IsZero() bool { return len(kp.PrivateKey) == 0 }

// Seed returns the 32-byte seed the private key expands from.
func (kp KeyPair) Seed() []byte { return kp.PrivateKey.Seed() }

func (kp KeyPair) PeerID() PeerID {
	return PeerIDFromPublicKey(kp.PublicKey)
}

func (kp KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, message)
}

func Verify(publicKey ed25519.PublicKey, message, signature []byte) bool {
	return ed25519.Verify(publicKey, message, signature)
}
