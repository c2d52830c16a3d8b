package frame

import (
	"fmt"

	"github.com/TheusHen/secchan/secchan/buffer"
	"github.com/TheusHen/secchan/secchan/crypto"
)

// Assembler reassembles frames from raw inbound bytes and decrypts them
// in order.
//
// A failed frame is fatal: everything decrypted before it stays readable,
// the rest of the raw input is dropped and every later Feed returns the
// same error.
//
// The length prefix is not authenticated on its own. A corrupted prefix that
// shortens a frame fails the tag check; one that lengthens it leaves the
// Assembler waiting for bytes that never come. Either way no corrupted
// plaintext is delivered.
type Assembler struct {
	cs  *crypto.CipherSession
	raw *buffer.Ring
	out *buffer.Ring

	ct  []byte // ciphertext that straddles the raw ring's wrap point
	pt  []byte // plaintext bound for a wrapped output region
	err error
}

// NewAssembler decrypts with cs. raw may carry bytes already received (a
// handshake's trailing input); nil starts empty.
func NewAssembler(cs *crypto.CipherSession, raw *buffer.Ring) *Assembler {
	if raw == nil {
		raw = buffer.New(0)
	}
	return &Assembler{cs: cs, raw: raw, out: buffer.New(0)}
}

// Feed appends chunk to the raw queue and decrypts every frame that is now
// complete.
func (a *Assembler) Feed(chunk []byte) error {
	if a.err != nil {
		return a.err
	}
	a.raw.Write(chunk)
	return a.drain()
}

func (a *Assembler) drain() error {
	for {
		n, ok := peekLength(a.raw)
		if !ok {
			return nil
		}
		if err := a.open(n); err != nil {
			a.err = fmt.Errorf("%w: frame of %d bytes", err, n)
			a.raw.Reset()
			return a.err
		}
	}
}

// open decrypts the n-byte frame body at the front of raw into out.
func (a *Assembler) open(n int) error {
	a.raw.Discard(LengthPrefixSize)
	head, tail := a.raw.Regions()
	ct := head
	if len(head) >= n {
		ct = head[:n]
	} else {
		a.ct = append(append(a.ct[:0], head...), tail[:n-len(head)]...)
		ct = a.ct
	}

	ptLen := n - crypto.TagSize
	if ptLen < 0 {
		return crypto.ErrAuthenticationFailed
	}
	dh, dt := a.out.Extend(ptLen)
	var err error
	if len(dt) == 0 {
		// Capped so a failed Open cannot touch queued plaintext past dh.
		_, err = a.cs.Decrypt(dh[:0:len(dh)], ct)
	} else {
		a.pt, err = a.cs.Decrypt(a.pt[:0], ct)
		if err == nil {
			k := copy(dh, a.pt)
			copy(dt, a.pt[k:])
			clear(a.pt)
		}
	}
	if err != nil {
		a.out.Unwrite(ptLen)
		return err
	}
	a.raw.Discard(n)
	return nil
}

// TakeDecrypted removes and returns up to max plaintext bytes, front-first.
// It returns nil when nothing is buffered.
func (a *Assembler) TakeDecrypted(max int) []byte {
	n := min(max, a.out.Len())
	if n <= 0 {
		return nil
	}
	b := make([]byte, n)
	a.out.Read(b)
	return b
}

// ReadDecrypted copies buffered plaintext into p and consumes it.
func (a *Assembler) ReadDecrypted(p []byte) int { return a.out.Read(p) }

// Buffered returns the amount of plaintext waiting to be taken.
func (a *Assembler) Buffered() int { return a.out.Len() }

// Pending returns raw bytes held back as an incomplete frame.
func (a *Assembler) Pending() int { return a.raw.Len() }

// Err returns the sticky decryption error, if any.
func (a *Assembler) Err() error { return a.err }

// Wipe zeroes all buffers and drops the cipher.
func (a *Assembler) Wipe() {
	a.raw.Reset()
	a.out.Reset()
	clear(a.ct)
	clear(a.pt)
	if a.cs != nil {
		a.cs.Destroy()
	}
}
