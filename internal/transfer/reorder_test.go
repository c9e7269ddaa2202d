package transfer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/edgexfer/internal/testutil/testlog"
)

type recordingWriter struct {
	out    []byte
	writes int
	fail   error
}

func (w *recordingWriter) write(p []byte) error {
	if w.fail != nil {
		return w.fail
	}
	w.out = append(w.out, p...)
	w.writes++
	return nil
}

func span(start, end int) []byte {
	b := make([]byte, end-start)
	for i := range b {
		b[i] = byte((start + i) % 251)
	}
	return b
}

func TestReordererOutOfOrderConvergence(t *testing.T) {
	testlog.Start(t)
	r := NewReorderer()
	w := &recordingWriter{}

	if o, _, err := r.Accept(0, span(0, 100), w.write); err != nil || o != Applied {
		t.Fatalf("first chunk: outcome=%s err=%v", o, err)
	}
	if o, _, err := r.Accept(200, span(200, 300), w.write); err != nil || o != Stashed {
		t.Fatalf("third chunk: outcome=%s err=%v", o, err)
	}
	if r.Next() != 100 || len(w.out) != 100 || r.Pending() != 1 {
		t.Fatalf("after stash next=%d written=%d pending=%d", r.Next(), len(w.out), r.Pending())
	}
	o, drained, err := r.Accept(100, span(100, 200), w.write)
	if err != nil || o != Applied || drained != 1 {
		t.Fatalf("gap fill: outcome=%s drained=%d err=%v", o, drained, err)
	}
	if r.Next() != 300 || r.Pending() != 0 || r.PendingBytes() != 0 {
		t.Fatalf("final next=%d pending=%d bytes=%d", r.Next(), r.Pending(), r.PendingBytes())
	}
	if !bytes.Equal(w.out, span(0, 300)) {
		t.Fatalf("output mismatch")
	}
}

func TestReordererDrainsLongRun(t *testing.T) {
	testlog.Start(t)
	r := NewReorderer()
	w := &recordingWriter{}
	for _, off := range []int{40, 30, 20, 10} {
		if o, _, _ := r.Accept(uint64(off), span(off, off+10), w.write); o != Stashed {
			t.Fatalf("offset=%d outcome=%s", off, o)
		}
	}
	if got := r.Offsets(); len(got) != 4 || got[0] != 10 || got[3] != 40 {
		t.Fatalf("stash order: %v", got)
	}
	_, drained, err := r.Accept(0, span(0, 10), w.write)
	if err != nil || drained != 4 {
		t.Fatalf("drained=%d err=%v", drained, err)
	}
	if !bytes.Equal(w.out, span(0, 50)) || w.writes != 5 {
		t.Fatalf("unexpected output len=%d writes=%d", len(w.out), w.writes)
	}
}

func TestReordererDropsDuplicates(t *testing.T) {
	testlog.Start(t)
	r := NewReorderer()
	w := &recordingWriter{}
	_, _, _ = r.Accept(0, span(0, 10), w.write)
	if o, _, _ := r.Accept(0, span(0, 10), w.write); o != Duplicate {
		t.Fatalf("expected duplicate of flushed offset, got %s", o)
	}
	_, _, _ = r.Accept(20, span(20, 30), w.write)
	if o, _, _ := r.Accept(20, span(20, 30), w.write); o != Duplicate {
		t.Fatalf("expected duplicate of stashed offset, got %s", o)
	}
	for _, off := range []uint64{0, 10, 50} {
		if o, _, _ := r.Accept(off, nil, w.write); o != Empty {
			t.Fatalf("offset=%d expected empty outcome, got %s", off, o)
		}
	}
	if r.Next() != 10 || r.Pending() != 1 {
		t.Fatalf("empty chunk moved state: next=%d pending=%d", r.Next(), r.Pending())
	}
	_, _, _ = r.Accept(10, span(10, 20), w.write)
	if !bytes.Equal(w.out, span(0, 30)) {
		t.Fatalf("duplicates leaked into output: len=%d", len(w.out))
	}
}

func TestReordererStraddlingChunkContributesTail(t *testing.T) {
	testlog.Start(t)
	r := NewReorderer()
	w := &recordingWriter{}
	_, _, _ = r.Accept(0, span(0, 10), w.write)
	o, _, err := r.Accept(5, span(5, 15), w.write)
	if err != nil || o != Applied {
		t.Fatalf("outcome=%s err=%v", o, err)
	}
	if !bytes.Equal(w.out, span(0, 15)) {
		t.Fatalf("unexpected output len=%d", len(w.out))
	}
}

func TestReordererWriteFailureKeepsCursor(t *testing.T) {
	testlog.Start(t)
	r := NewReorderer()
	w := &recordingWriter{fail: errors.New("disk full")}
	if _, _, err := r.Accept(0, span(0, 10), w.write); err == nil {
		t.Fatalf("expected write error")
	}
	if r.Next() != 0 {
		t.Fatalf("cursor advanced past failed write: %d", r.Next())
	}
}

func TestReordererDiscard(t *testing.T) {
	testlog.Start(t)
	r := NewReorderer()
	w := &recordingWriter{}
	_, _, _ = r.Accept(10, span(10, 20), w.write)
	_, _, _ = r.Accept(30, span(30, 40), w.write)
	if n := r.Discard(); n != 2 {
		t.Fatalf("discarded=%d", n)
	}
	if r.Pending() != 0 || r.PendingBytes() != 0 {
		t.Fatalf("stash not cleared")
	}
}
