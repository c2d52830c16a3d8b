package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/TheusHen/secchan/secchan/buffer"
	"github.com/TheusHen/secchan/secchan/crypto"
)

const (
	LengthPrefixSize = 2
	MaxCiphertextLen = crypto.MaxMessageLen
	MaxPlaintextLen  = MaxCiphertextLen - crypto.TagSize
)

var ErrFrameTooLarge = errors.New("frame: message exceeds 65535 bytes")

// peekLength returns the body length of the frame at the front of r and
// whether the whole frame is buffered. Nothing is consumed.
func peekLength(r *buffer.Ring) (int, bool) {
	var prefix [LengthPrefixSize]byte
	if r.Peek(prefix[:]) < LengthPrefixSize {
		return 0, false
	}
	n := int(binary.BigEndian.Uint16(prefix[:]))
	return n, r.Len() >= LengthPrefixSize+n
}

// putPrefix fills the start of a freshly extended region with the length
// of the rest and returns the regions left for the body.
func putPrefix(head, tail []byte) ([]byte, []byte) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(head)+len(tail)-LengthPrefixSize))
	k := copy(head, prefix[:])
	copy(tail, prefix[k:])
	head, tail = head[k:], tail[LengthPrefixSize-k:]
	if len(head) == 0 {
		head, tail = tail, nil
	}
	return head, tail
}

// PutRaw queues msg on tx with a length prefix and no encryption. Sessions
// use it to carry handshake messages on the same stream as frames.
func PutRaw(tx *buffer.Ring, msg []byte) error {
	if len(msg) > MaxCiphertextLen {
		return fmt.Errorf("%w: %d", ErrFrameTooLarge, len(msg))
	}
	head, tail := putPrefix(tx.Extend(LengthPrefixSize + len(msg)))
	n := copy(head, msg)
	copy(tail, msg[n:])
	return nil
}

// TakeRaw removes the next complete length-prefixed message from raw. It
// returns false, consuming nothing, while the message is still incomplete.
func TakeRaw(raw *buffer.Ring) ([]byte, bool) {
	n, ok := peekLength(raw)
	if !ok {
		return nil, false
	}
	raw.Discard(LengthPrefixSize)
	msg := make([]byte, n)
	raw.Read(msg)
	return msg, true
}
