package frame

// DrainInto copies up to len(dst) queued bytes into dst, consumes them and
// returns the count. It returns 0 when nothing is queued.
func (f *Framer) DrainInto(dst []byte) int { return f.tx.Read(dst) }

// Pending returns the number of bytes queued for the wire.
func (f *Framer) Pending() int { return f.tx.Len() }

// Wipe zeroes the transmit queue and drops the cipher.
func (f *Framer) Wipe() {
	f.tx.Reset()
	clear(f.scratch)
	if f.cs != nil {
		f.cs.Destroy()
	}
}
