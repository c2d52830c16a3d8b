package handshake

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/TheusHen/secchan/secchan/crypto"
)

// Config configures one side of a handshake.
type Config struct {
	// Suite pins the DH, cipher and hash functions. The zero value selects
	// crypto.DefaultProtocol.
	Suite crypto.Suite
	Role  Role
	// StaticKeypair is the long-term X25519 key pair.
	StaticKeypair crypto.DHKey
	// EphemeralKeypair fixes the ephemeral key. Leave empty outside tests.
	EphemeralKeypair crypto.DHKey
	// Prologue is mixed into the transcript; both sides must agree on it.
	Prologue []byte
	// Random is the entropy source for ephemeral keys (crypto/rand if nil).
	Random io.Reader
}

// State is the handshake in progress. It is not safe for concurrent use.
type State struct {
	sym    symmetricState
	role   Role
	pos    int
	s      crypto.DHKey
	e      crypto.DHKey
	rs     []byte
	re     []byte
	random io.Reader

	err      error
	complete bool
	split    bool
}

// New starts a handshake for the given role and static key.
func New(cfg Config) (*State, error) {
	if cfg.Role != Initiator && cfg.Role != Responder {
		return nil, ErrInvalidRole
	}
	suite := cfg.Suite
	if suite.IsZero() {
		suite = crypto.MustParseSuite(crypto.DefaultProtocol)
	}
	if suite.Pattern() != "XX" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPattern, suite.Pattern())
	}
	if err := cfg.StaticKeypair.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStaticKey, err)
	}
	random := cfg.Random
	if random == nil {
		random = rand.Reader
	}

	hs := &State{
		sym:    newSymmetricState(suite),
		role:   cfg.Role,
		s:      cfg.StaticKeypair,
		random: random,
	}
	if len(cfg.EphemeralKeypair.Private) > 0 {
		if err := cfg.EphemeralKeypair.Validate(); err != nil {
			return nil, err
		}
		hs.e = crypto.DHKey{
			Private: append([]byte(nil), cfg.EphemeralKeypair.Private...),
			Public:  append([]byte(nil), cfg.EphemeralKeypair.Public...),
		}
	}
	hs.sym.mixHash(cfg.Prologue)
	return hs, nil
}

func (hs *State) Role() Role { return hs.role }

// Position returns the index of the next message, 0 to 2; 3 once complete.
func (hs *State) Position() int { return hs.pos }

// Complete reports whether all three messages have been processed.
func (hs *State) Complete() bool { return hs.complete }

// WritesNext reports whether the next message is ours to send.
func (hs *State) WritesNext() bool {
	return !hs.complete && hs.err == nil && hs.role.writesAt(hs.pos)
}

// PeerStatic returns the remote static public key once it has been received.
func (hs *State) PeerStatic() []byte { return hs.rs }

// HandshakeHash returns the transcript hash, usable for channel binding
// once the handshake is complete.
func (hs *State) HandshakeHash() []byte { return hs.sym.h }

// WriteMessage produces the next outgoing message carrying payload.
func (hs *State) WriteMessage(payload []byte) ([]byte, error) {
	if hs.err != nil {
		return nil, hs.err
	}
	if hs.complete || !hs.role.writesAt(hs.pos) {
		return nil, fmt.Errorf("%w: %s cannot write message %d", ErrHandshakeState, hs.role, hs.pos)
	}
	size := hs.messageOverhead() + len(payload)
	if size > crypto.MaxMessageLen {
		return nil, fmt.Errorf("%w: message would be %d bytes", ErrPayloadTooLarge, size)
	}

	msg := make([]byte, 0, size)
	var err error
	for _, tok := range patternXX[hs.pos] {
		switch tok {
		case tokenE:
			if len(hs.e.Private) == 0 {
				if hs.e, err = crypto.GenerateKeypair(hs.random); err != nil {
					return nil, hs.poison(err)
				}
			}
			msg = append(msg, hs.e.Public...)
			hs.sym.mixHash(hs.e.Public)
		case tokenS:
			if msg, err = hs.sym.encryptAndHash(msg, hs.s.Public); err != nil {
				return nil, hs.poison(err)
			}
		default:
			if err = hs.mixDH(tok); err != nil {
				return nil, hs.poison(err)
			}
		}
	}
	if msg, err = hs.sym.encryptAndHash(msg, payload); err != nil {
		return nil, hs.poison(err)
	}
	hs.advance()
	return msg, nil
}

// ReadMessage consumes the next incoming message and returns its payload.
func (hs *State) ReadMessage(message []byte) ([]byte, error) {
	if hs.err != nil {
		return nil, hs.err
	}
	if hs.complete || hs.role.writesAt(hs.pos) {
		return nil, fmt.Errorf("%w: %s cannot read message %d", ErrHandshakeState, hs.role, hs.pos)
	}
	if len(message) > crypto.MaxMessageLen {
		return nil, hs.fail(crypto.ErrMessageTooLarge)
	}

	for _, tok := range patternXX[hs.pos] {
		switch tok {
		case tokenE:
			if len(message) < crypto.DHLen {
				return nil, hs.fail(io.ErrUnexpectedEOF)
			}
			hs.re = append([]byte(nil), message[:crypto.DHLen]...)
			hs.sym.mixHash(hs.re)
			message = message[crypto.DHLen:]
		case tokenS:
			n := crypto.DHLen + hs.sym.tagLen()
			if len(message) < n {
				return nil, hs.fail(io.ErrUnexpectedEOF)
			}
			rs, err := hs.sym.decryptAndHash(message[:n])
			if err != nil {
				return nil, hs.fail(err)
			}
			hs.rs = rs
			message = message[n:]
		default:
			if err := hs.mixDH(tok); err != nil {
				return nil, hs.fail(err)
			}
		}
	}
	payload, err := hs.sym.decryptAndHash(message)
	if err != nil {
		return nil, hs.fail(err)
	}
	hs.advance()
	return payload, nil
}

// Split returns the (send, receive) cipher sessions. It may be called once,
// after Complete reports true.
func (hs *State) Split() (send, recv *crypto.CipherSession, err error) {
	if hs.err != nil {
		return nil, nil, hs.err
	}
	if !hs.complete || hs.split {
		return nil, nil, fmt.Errorf("%w: split unavailable", ErrHandshakeState)
	}
	c1, c2, err := hs.sym.split()
	if err != nil {
		return nil, nil, hs.poison(err)
	}
	hs.split = true
	if hs.role == Initiator {
		return c1, c2, nil
	}
	return c2, c1, nil
}

// Destroy wipes the ephemeral key and symmetric state. Every later call
// fails with ErrHandshakeState. The caller's static key is left untouched.
func (hs *State) Destroy() {
	if hs.err == nil {
		hs.poison(fmt.Errorf("%w: destroyed", ErrHandshakeState))
	}
}

// mixDH performs the DH named by tok. es means initiator ephemeral with
// responder static, se the reverse, whichever side computes it.
func (hs *State) mixDH(tok token) error {
	var priv, pub []byte
	switch tok {
	case tokenEE:
		priv, pub = hs.e.Private, hs.re
	case tokenES:
		if hs.role == Initiator {
			priv, pub = hs.e.Private, hs.rs
		} else {
			priv, pub = hs.s.Private, hs.re
		}
	case tokenSE:
		if hs.role == Initiator {
			priv, pub = hs.s.Private, hs.re
		} else {
			priv, pub = hs.e.Private, hs.rs
		}
	case tokenSS:
		priv, pub = hs.s.Private, hs.rs
	}
	shared, err := crypto.DH(priv, pub)
	if err != nil {
		return err
	}
	defer clear(shared)
	return hs.sym.mixKey(shared)
}

// messageOverhead is the size of the current message without its payload.
func (hs *State) messageOverhead() int {
	keyed := hs.sym.hasKey()
	size := 0
	for _, tok := range patternXX[hs.pos] {
		switch tok {
		case tokenE:
			size += crypto.DHLen
		case tokenS:
			size += crypto.DHLen
			if keyed {
				size += crypto.TagSize
			}
		default:
			keyed = true
		}
	}
	if keyed {
		size += crypto.TagSize
	}
	return size
}

func (hs *State) advance() {
	hs.pos++
	if hs.pos == len(patternXX) {
		hs.complete = true
		hs.e.Wipe()
	}
}

// fail poisons the handshake after a message was rejected.
func (hs *State) fail(cause error) error {
	return hs.poison(fmt.Errorf("%w: %v", ErrHandshakeAuthentication, cause))
}

// poison makes every later call return err.
func (hs *State) poison(err error) error {
	hs.err = err
	hs.e.Wipe()
	hs.sym.wipe()
	return err
}
