// Package buffer implements the growable byte ring used for the channel's
// inbound, decrypted and transmit queues.
//
// A Ring exposes its contents as at most two contiguous regions, both for
// reading (Regions) and for appending (Extend), so callers can encrypt or
// decrypt straight into the backing storage when a frame does not straddle
// the wrap-around point.
package buffer

// minCapacity is the smallest backing array a Ring allocates.
const minCapacity = 64

type Ring struct {
	buf         []byte
	start, size int
}

// New creates a ring with room for capacity bytes before it has to grow.
func New(capacity int) *Ring {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int { return r.size }

// Cap returns the size of the backing array.
func (r *Ring) Cap() int { return len(r.buf) }

// Free returns how many bytes can be appended without growing.
func (r *Ring) Free() int { return len(r.buf) - r.size }

// Regions returns the buffered bytes front-first as up to two slices aliasing
// the backing array. tail is nil unless the contents wrap around.
func (r *Ring) Regions() (head, tail []byte) {
	if r.size == 0 {
		return nil, nil
	}
	end := r.start + r.size
	if end <= len(r.buf) {
		return r.buf[r.start:end], nil
	}
	return r.buf[r.start:], r.buf[:end-len(r.buf)]
}

// Write appends all of b, growing the ring if needed.
func (r *Ring) Write(b []byte) int {
	head, tail := r.Extend(len(b))
	n := copy(head, b)
	copy(tail, b[n:])
	return len(b)
}

// Extend grows the buffered length by n and returns the newly appended
// region as up to two slices with len(head)+len(tail) == n. The caller must
// fill both before the bytes are read back.
func (r *Ring) Extend(n int) (head, tail []byte) {
	if n <= 0 {
		return nil, nil
	}
	if r.Free() < n {
		r.grow(n)
	}
	ws := (r.start + r.size) % len(r.buf)
	r.size += n
	if ws+n <= len(r.buf) {
		return r.buf[ws : ws+n], nil
	}
	return r.buf[ws:], r.buf[:n-(len(r.buf)-ws)]
}

// Unwrite drops the last n buffered bytes, undoing an Extend that could not
// be completed.
func (r *Ring) Unwrite(n int) int {
	if n > r.size {
		n = r.size
	}
	r.size -= n
	if r.size == 0 {
		r.start = 0
	}
	return n
}

// Peek copies buffered bytes into b without consuming them.
func (r *Ring) Peek(b []byte) int {
	head, tail := r.Regions()
	n := copy(b, head)
	n += copy(b[n:], tail)
	return n
}

// Read copies as many bytes as possible into b and consumes them. Returns the
// number of bytes removed, which may be 0 if the ring is empty.
func (r *Ring) Read(b []byte) int {
	return r.Discard(r.Peek(b))
}

// Discard consumes up to n bytes from the front.
func (r *Ring) Discard(n int) int {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return 0
	}
	r.size -= n
	if r.size == 0 {
		// Rewind so the next frame starts contiguous.
		r.start = 0
	} else {
		r.start = (r.start + n) % len(r.buf)
	}
	return n
}

// Reset zeroes the backing array and empties the ring.
func (r *Ring) Reset() {
	clear(r.buf)
	r.start, r.size = 0, 0
}

func (r *Ring) grow(n int) {
	newCap := 2 * len(r.buf)
	if newCap < r.size+n {
		newCap = r.size + n
	}
	if newCap < minCapacity {
		newCap = minCapacity
	}
	buf := make([]byte, newCap)
	head, tail := r.Regions()
	copy(buf[copy(buf, head):], tail)
	clear(r.buf)
	r.buf = buf
	r.start = 0
}
