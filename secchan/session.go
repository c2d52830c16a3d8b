package secchan

import (
	"fmt"

	"github.com/TheusHen/secchan/secchan/buffer"
	"github.com/TheusHen/secchan/secchan/frame"
	"github.com/TheusHen/secchan/secchan/handshake"
	"github.com/TheusHen/secchan/secchan/identity"
)

const initialRingSize = 4096

// Session is one end of a secure channel. It is either in the handshake or
// established, never both; the transition happens once, inside Feed.
//
// Handshake messages travel with the same two-byte length prefix as
// transport frames, so a single byte stream carries both phases.
//
// A Session is not safe for concurrent use.
type Session struct {
	cfg Config

	hs  *handshake.State
	raw *buffer.Ring
	tx  *buffer.Ring

	asm *frame.Assembler
	fr  *frame.Framer

	remoteStatic []byte
	remoteID     identity.PeerID
	hasRemoteID  bool
	identityDone bool
	hash         []byte

	err    error
	closed bool
}

// New starts a session. An initiator queues its first handshake message
// immediately; drain it with DrainInto.
func New(role Role, cfg Config) (*Session, error) {
	suite, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	hs, err := handshake.New(handshake.Config{
		Suite:         suite,
		Role:          role,
		StaticKeypair: cfg.StaticKeypair,
		Prologue:      cfg.Prologue,
		Random:        cfg.Random,
	})
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg: cfg,
		hs:  hs,
		raw: buffer.New(initialRingSize),
		tx:  buffer.New(initialRingSize),
	}
	if hs.WritesNext() {
		if err := s.writeHandshake(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Feed consumes bytes received from the peer. During the handshake it may
// queue replies and complete the handshake; afterwards it decrypts every
// complete frame. Errors are fatal and sticky.
func (s *Session) Feed(chunk []byte) error {
	if s.closed {
		return ErrClosed
	}
	if s.err != nil {
		return s.err
	}
	if s.asm != nil {
		return s.setErr(s.asm.Feed(chunk))
	}

	s.raw.Write(chunk)
	for s.hs != nil {
		msg, ok := frame.TakeRaw(s.raw)
		if !ok {
			return nil
		}
		payload, err := s.hs.ReadMessage(msg)
		if err != nil {
			return s.setErr(err)
		}
		if err := s.checkIdentity(payload); err != nil {
			return s.setErr(err)
		}
		switch {
		case s.hs.WritesNext():
			err = s.writeHandshake()
		case s.hs.Complete():
			err = s.establish()
		}
		if err != nil {
			return s.setErr(err)
		}
	}
	return nil
}

func (s *Session) writeHandshake() error {
	var payload []byte
	// Position 0 carries no static key to bind the identity to.
	if s.hs.Position() > 0 && !s.cfg.Identity.IsZero() {
		payload = identity.NewPayload(s.cfg.Identity, s.cfg.StaticKeypair.Public).Marshal()
	}
	msg, err := s.hs.WriteMessage(payload)
	if err != nil {
		return err
	}
	if err := frame.PutRaw(s.tx, msg); err != nil {
		return err
	}
	if s.hs.Complete() {
		return s.establish()
	}
	return nil
}

// checkIdentity verifies the payload of the message that delivered the
// peer's static key.
func (s *Session) checkIdentity(payload []byte) error {
	static := s.hs.PeerStatic()
	if static == nil || s.identityDone {
		return nil
	}
	s.identityDone = true
	if len(payload) == 0 {
		if s.cfg.RequireRemoteIdentity {
			return ErrIdentityMissing
		}
		return nil
	}
	p, err := identity.UnmarshalPayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityMismatch, err)
	}
	if err := p.Verify(static); err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityMismatch, err)
	}
	s.remoteID = p.PeerID()
	s.hasRemoteID = true
	return nil
}

// establish swaps the finished handshake for the transport ciphers. Bytes
// already buffered past the last handshake message are decrypted at once.
func (s *Session) establish() error {
	send, recv, err := s.hs.Split()
	if err != nil {
		return err
	}
	s.remoteStatic = append([]byte(nil), s.hs.PeerStatic()...)
	s.hash = append([]byte(nil), s.hs.HandshakeHash()...)
	s.hs = nil
	s.fr = frame.NewFramer(send, s.tx)
	s.asm = frame.NewAssembler(recv, s.raw)
	return s.asm.Feed(nil)
}

func (s *Session) setErr(err error) error {
	if err != nil && s.err == nil {
		s.err = err
	}
	return err
}

// Write encrypts p into frames queued for the wire.
func (s *Session) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.fr == nil {
		return 0, ErrNotEstablished
	}
	n, err := s.fr.Write(p)
	return n, s.setErr(err)
}

// DrainInto moves queued wire bytes, handshake messages included, into dst
// and returns the count.
func (s *Session) DrainInto(dst []byte) int {
	if s.closed {
		return 0
	}
	return s.tx.Read(dst)
}

// TakeDecrypted removes up to max bytes of received plaintext.
func (s *Session) TakeDecrypted(max int) []byte {
	if s.asm == nil || s.closed {
		return nil
	}
	return s.asm.TakeDecrypted(max)
}

// ReadDecrypted copies received plaintext into p.
func (s *Session) ReadDecrypted(p []byte) int {
	if s.asm == nil || s.closed {
		return 0
	}
	return s.asm.ReadDecrypted(p)
}

// Pending returns the number of bytes waiting to be drained.
func (s *Session) Pending() int {
	if s.closed {
		return 0
	}
	return s.tx.Len()
}

// Buffered returns the amount of plaintext waiting to be taken.
func (s *Session) Buffered() int {
	if s.asm == nil || s.closed {
		return 0
	}
	return s.asm.Buffered()
}

func (s *Session) Established() bool { return s.fr != nil && !s.closed }

// Err returns the fatal error that stopped the session, if any.
func (s *Session) Err() error { return s.err }

// RemoteStatic returns the peer's X25519 static key once established.
func (s *Session) RemoteStatic() []byte { return s.remoteStatic }

// RemotePeerID returns the peer identity proven during the handshake. ok is
// false when the peer sent none.
func (s *Session) RemotePeerID() (id identity.PeerID, ok bool) {
	return s.remoteID, s.hasRemoteID
}

// HandshakeHash returns the final transcript hash, identical on both ends.
func (s *Session) HandshakeHash() []byte { return s.hash }

// Close wipes key material and buffers. It is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.hs != nil {
		s.hs.Destroy()
		s.hs = nil
	}
	if s.asm != nil {
		s.asm.Wipe()
	}
	if s.fr != nil {
		s.fr.Wipe()
	}
	s.raw.Reset()
	s.tx.Reset()
	clear(s.hash)
	return nil
}
