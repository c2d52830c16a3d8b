package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// StaticKeySignaturePrefix precedes the Noise static key in the signed message.
const StaticKeySignaturePrefix = "noise-libp2p-static-key:"

// keyTypeEd25519 is the libp2p crypto.pb KeyType for Ed25519.
const keyTypeEd25519 = 1

var (
	ErrPayloadMalformed    = errors.New("identity: malformed handshake payload")
	ErrUnsupportedKeyType  = errors.New("identity: unsupported identity key type")
	ErrPayloadBadSignature = errors.New("identity: static key signature invalid")
)

// Payload binds a Noise static key to an Ed25519 identity. It is carried in
// the second and third handshake messages and encoded as the libp2p
// NoiseHandshakePayload protobuf:
//
//	identity_key = 1 (bytes, a libp2p PublicKey message)
//	identity_sig = 2 (bytes)
type Payload struct {
	IdentityKey ed25519.PublicKey
	IdentitySig []byte
}

// NewPayload signs noiseStatic with the identity key.
func NewPayload(kp KeyPair, noiseStatic []byte) Payload {
	return Payload{
		IdentityKey: append(ed25519.PublicKey(nil), kp.PublicKey...),
		IdentitySig: kp.Sign(signingBytes(noiseStatic)),
	}
}

func signingBytes(noiseStatic []byte) []byte {
	b := make([]byte, 0, len(StaticKeySignaturePrefix)+len(noiseStatic))
	b = append(b, StaticKeySignaturePrefix...)
	return append(b, noiseStatic...)
}

// Verify checks that the signature covers noiseStatic.
func (p Payload) Verify(noiseStatic []byte) error {
	if len(p.IdentityKey) != ed25519.PublicKeySize {
		return ErrPayloadMalformed
	}
	if !Verify(p.IdentityKey, signingBytes(noiseStatic), p.IdentitySig) {
		return ErrPayloadBadSignature
	}
	return nil
}

func (p Payload) PeerID() PeerID {
	return PeerIDFromPublicKey(p.IdentityKey)
}

func (p Payload) Marshal() []byte {
	var key []byte
	key = protowire.AppendTag(key, 1, protowire.VarintType)
	key = protowire.AppendVarint(key, keyTypeEd25519)
	key = protowire.AppendTag(key, 2, protowire.BytesType)
	key = protowire.AppendBytes(key, p.IdentityKey)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, key)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, p.IdentitySig)
	return b
}

// UnmarshalPayload decodes a NoiseHandshakePayload. Unknown fields, such as
// libp2p extensions, are skipped.
func UnmarshalPayload(b []byte) (Payload, error) {
	var p Payload
	var rawKey []byte
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			rawKey = v
		case num == 2 && typ == protowire.BytesType:
			p.IdentitySig = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Payload{}, err
	}
	if rawKey == nil || p.IdentitySig == nil {
		return Payload{}, fmt.Errorf("%w: missing identity", ErrPayloadMalformed)
	}
	if p.IdentityKey, err = unmarshalPublicKey(rawKey); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func unmarshalPublicKey(b []byte) (ed25519.PublicKey, error) {
	var keyType uint64
	var data []byte
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			n, m := protowire.ConsumeVarint(v)
			if m < 0 {
				return protowire.ParseError(m)
			}
			keyType = n
		case num == 2 && typ == protowire.BytesType:
			data = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if keyType != keyTypeEd25519 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedKeyType, keyType)
	}
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: key length %d", ErrPayloadMalformed, len(data))
	}
	return append(ed25519.PublicKey(nil), data...), nil
}

// walkFields calls fn for each top-level field. For bytes fields v is the
// field content; for varints it is the raw varint encoding.
func walkFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrPayloadMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		var v []byte
		switch typ {
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				v = b[:n]
			}
		}
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrPayloadMalformed, protowire.ParseError(n))
		}
		if err := fn(num, typ, v); err != nil {
			return fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
		}
		b = b[n:]
	}
	return nil
}
