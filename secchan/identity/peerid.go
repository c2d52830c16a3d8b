package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrInvalidPeerID = errors.New("identity: invalid PeerID")

// PeerID is the stable identifier for a peer: SHA-256 of its Ed25519
// identity public key.
type PeerID [32]byte

func PeerIDFromPublicKey(publicKey ed25519.PublicKey) PeerID {
	return PeerID(sha256.Sum256(publicKey))
}

func ParsePeerIDHex(s string) (PeerID, error) {
	var id PeerID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return PeerID{}, err
	}
	return id, nil
}

func (id PeerID) IsZero() bool { return id == PeerID{} }

func (id PeerID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString is the first 8 hex digits, for logs.
func (id PeerID) ShortString() string {
	return hex.EncodeToString(id[:4])
}

func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *PeerID) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(id) {
		return ErrInvalidPeerID
	}
	if _, err := hex.Decode(id[:], text); err != nil {
		return ErrInvalidPeerID
	}
	return nil
}
