package secchan

import (
	"errors"
	"fmt"

	"github.com/TheusHen/secchan/secchan/handshake"
)

var (
	ErrNotEstablished = errors.New("secchan: handshake not complete")
	ErrClosed         = errors.New("secchan: session closed")

	// ErrIdentityMismatch reports an identity payload whose signature does not
	// cover the peer's Noise static key. It matches
	// handshake.ErrHandshakeAuthentication.
	ErrIdentityMismatch = fmt.Errorf("%w: identity does not match static key", handshake.ErrHandshakeAuthentication)
	// ErrIdentityMissing reports a peer that sent no identity payload while
	// Config.RequireRemoteIdentity is set.
	ErrIdentityMissing = fmt.Errorf("%w: peer sent no identity", handshake.ErrHandshakeAuthentication)
)
