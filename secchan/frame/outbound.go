package frame

import (
	"github.com/TheusHen/secchan/secchan/buffer"
	"github.com/TheusHen/secchan/secchan/crypto"
)

// Framer encrypts plaintext into frames appended to a transmit ring.
type Framer struct {
	cs      *crypto.CipherSession
	tx      *buffer.Ring
	scratch []byte
}

// NewFramer encrypts with cs onto tx; nil allocates a fresh ring. Sharing
// tx with the handshake keeps its trailing output ahead of the first frame.
func NewFramer(cs *crypto.CipherSession, tx *buffer.Ring) *Framer {
	if tx == nil {
		tx = buffer.New(0)
	}
	return &Framer{cs: cs, tx: tx}
}

// Write queues p as ceil(len(p)/MaxPlaintextLen) frames. The only failure
// is the cipher refusing to encrypt (nonce exhaustion); frames queued before
// it stay queued and n counts their plaintext.
func (f *Framer) Write(p []byte) (n int, err error) {
	for len(p) > 0 {
		chunk := p[:min(len(p), MaxPlaintextLen)]
		if err := f.seal(chunk); err != nil {
			return n, err
		}
		n += len(chunk)
		p = p[len(chunk):]
	}
	return n, nil
}

// seal appends one frame. The ciphertext is sealed straight into the ring
// when its region is contiguous.
func (f *Framer) seal(chunk []byte) error {
	ctLen := len(chunk) + crypto.TagSize
	total := LengthPrefixSize + ctLen
	head, tail := putPrefix(f.tx.Extend(total))

	var err error
	if len(tail) == 0 {
		_, err = f.cs.Encrypt(head[:0:len(head)], chunk)
	} else {
		f.scratch, err = f.cs.Encrypt(f.scratch[:0], chunk)
		if err == nil {
			k := copy(head, f.scratch)
			copy(tail, f.scratch[k:])
		}
	}
	if err != nil {
		f.tx.Unwrite(total)
		return err
	}
	return nil
}
