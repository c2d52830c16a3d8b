package handshake

import "errors"

var (
	// ErrHandshakeState reports a call made out of turn, after completion, or
	// a second Split. It is a caller bug, not a security event.
	ErrHandshakeState = errors.New("handshake: operation out of turn")

	// ErrHandshakeAuthentication reports a malformed, tampered or wrong-key
	// message. The State is unusable afterwards.
	ErrHandshakeAuthentication = errors.New("handshake: message failed authentication")

	// ErrPayloadTooLarge reports a payload that would push the message past
	// 65535 bytes.
	ErrPayloadTooLarge = errors.New("handshake: payload too large")

	ErrInvalidRole        = errors.New("handshake: invalid role")
	ErrInvalidStaticKey   = errors.New("handshake: invalid static key")
	ErrUnsupportedPattern = errors.New("handshake: unsupported pattern")
)
