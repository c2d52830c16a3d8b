package buffer

import (
	"bytes"
	"testing"
)

const (
	doRead = iota
	doWrite
	doPeek
)

type ringStep struct {
	op        int
	data      string
	bufSize   int
	ret       int
	totalSize int
}

func TestRingFIFO(t *testing.T) {
	r := New(5)

	tab := []ringStep{
		{doWrite, "abc", 0, 3, 3},
		{doWrite, "d", 0, 1, 4},
		{doRead, "ab", 2, 2, 2},
		{doWrite, "ef", 0, 2, 4}, // wraps
		{doPeek, "cdef", 5, 4, 4},
		{doRead, "cdef", 5, 4, 0},
		{doRead, "", 5, 0, 0},
		{doWrite, "abcdefg", 0, 7, 7}, // grows
		{doWrite, "hi", 0, 2, 9},
		{doRead, "abcde", 5, 5, 4},
		{doRead, "fghi", 10, 4, 0},
	}

	for i, step := range tab {
		switch step.op {
		case doRead, doPeek:
			b := make([]byte, step.bufSize)
			var n int
			if step.op == doRead {
				n = r.Read(b)
			} else {
				n = r.Peek(b)
			}
			if n != step.ret {
				t.Fatalf("step %d: got %d bytes, want %d", i, n, step.ret)
			}
			if !bytes.Equal(b[:n], []byte(step.data)) {
				t.Fatalf("step %d: got %q, want %q", i, b[:n], step.data)
			}
		case doWrite:
			if n := r.Write([]byte(step.data)); n != step.ret {
				t.Fatalf("step %d: Write = %d, want %d", i, n, step.ret)
			}
		}
		if r.Len() != step.totalSize {
			t.Fatalf("step %d: Len = %d, want %d", i, r.Len(), step.totalSize)
		}
	}
}

func TestRingExtendWraps(t *testing.T) {
	r := New(8)
	r.Write([]byte("xxxxxx"))
	r.Discard(5)
	r.Write([]byte("a")) // start=5 size=2

	head, tail := r.Extend(4)
	if len(head) != 1 || len(tail) != 3 {
		t.Fatalf("Extend regions = %d/%d, want 1/3", len(head), len(tail))
	}
	copy(head, "b")
	copy(tail, "cde")

	h, tl := r.Regions()
	if tl == nil {
		t.Fatalf("expected wrapped contents")
	}
	got := append(append([]byte(nil), h...), tl...)
	if string(got) != "xabcde" {
		t.Fatalf("contents = %q", got)
	}
	if r.Cap() != 8 {
		t.Fatalf("ring grew unexpectedly to %d", r.Cap())
	}
}

func TestRingGrowPreservesOrder(t *testing.T) {
	r := New(4)
	r.Write([]byte("abc"))
	r.Discard(2)
	r.Write([]byte("def")) // wrapped: c|def
	r.Write(bytes.Repeat([]byte("z"), 100))

	out := make([]byte, r.Len())
	r.Read(out)
	want := append([]byte("cdef"), bytes.Repeat([]byte("z"), 100)...)
	if !bytes.Equal(out, want) {
		t.Fatalf("order lost across grow")
	}
}

func TestRingUnwrite(t *testing.T) {
	r := New(16)
	r.Write([]byte("keep"))
	head, _ := r.Extend(6)
	copy(head, "discard")
	if n := r.Unwrite(6); n != 6 {
		t.Fatalf("Unwrite = %d", n)
	}
	out := make([]byte, 10)
	n := r.Read(out)
	if string(out[:n]) != "keep" {
		t.Fatalf("got %q", out[:n])
	}
}

func TestRingReset(t *testing.T) {
	r := New(8)
	r.Write([]byte("secret"))
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("Len after Reset = %d", r.Len())
	}
	if !bytes.Equal(r.buf, make([]byte, len(r.buf))) {
		t.Fatalf("backing array not zeroed")
	}
}

func BenchmarkRingWriteRead(b *testing.B) {
	r := New(64 * 1024)
	in := make([]byte, 1500)
	out := make([]byte, 1500)
	b.SetBytes(int64(len(in)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Write(in)
		r.Read(out)
	}
}
