package secchan

import (
	"fmt"
	"io"

	"github.com/TheusHen/secchan/secchan/crypto"
	"github.com/TheusHen/secchan/secchan/handshake"
	"github.com/TheusHen/secchan/secchan/identity"
)

// DefaultProtocol is the Noise protocol name used when Config.Protocol is
// empty.
const DefaultProtocol = crypto.DefaultProtocol

type Role = handshake.Role

const (
	Initiator = handshake.Initiator
	Responder = handshake.Responder
)

// Config is the construction-time configuration of a Session. Both peers
// must agree on Protocol and Prologue out of band.
type Config struct {
	// Protocol pins the handshake pattern, DH, cipher and hash, for example
	// "Noise_XX_25519_ChaChaPoly_SHA256". Only the XX pattern is supported.
	Protocol string
	Prologue []byte

	// StaticKeypair is the long-term X25519 key. A zero value generates a
	// fresh key for this session only.
	StaticKeypair crypto.DHKey

	// Identity, when set, is sent to the peer as a signed handshake payload
	// binding it to StaticKeypair.
	Identity identity.KeyPair
	// RequireRemoteIdentity fails the handshake when the peer does not send
	// an identity payload.
	RequireRemoteIdentity bool

	// Random is the entropy source for key generation (crypto/rand if nil).
	Random io.Reader
}

// validate applies defaults in place and returns the parsed suite.
func (c *Config) validate() (crypto.Suite, error) {
	if c.Protocol == "" {
		c.Protocol = DefaultProtocol
	}
	suite, err := crypto.ParseSuite(c.Protocol)
	if err != nil {
		return crypto.Suite{}, err
	}
	if len(c.StaticKeypair.Private) == 0 {
		kp, err := crypto.GenerateKeypair(c.Random)
		if err != nil {
			return crypto.Suite{}, fmt.Errorf("secchan: generating static key: %w", err)
		}
		c.StaticKeypair = kp
	}
	return suite, nil
}
