package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/danmuck/edgexfer/internal/testutil/testlog"
)

func TestFillAssemblesFragmentedDeliveries(t *testing.T) {
	testlog.Start(t)
	q := make(chan []byte, 4)
	q <- []byte{1}
	q <- []byte{2, 3}
	q <- []byte{4, 5, 6}
	acc := NewAccumulator(q)

	got, ok := acc.PeekExact(context.Background(), 5, time.Now().Add(time.Second))
	if !ok {
		t.Fatalf("expected 5 bytes")
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("unexpected peek: %v", got)
	}
	if acc.Len() != 6 {
		t.Fatalf("expected surplus byte retained, len=%d", acc.Len())
	}
	acc.Consume(5)
	if !bytes.Equal(acc.Bytes(), []byte{6}) {
		t.Fatalf("unexpected tail: %v", acc.Bytes())
	}
}

func TestFillTimesOutWithoutDroppingBytes(t *testing.T) {
	testlog.Start(t)
	q := make(chan []byte, 2)
	q <- []byte("ab")
	acc := NewAccumulator(q)

	start := time.Now()
	if acc.Fill(context.Background(), 4, start.Add(30*time.Millisecond)) {
		t.Fatalf("expected no progress")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("fill blocked past deadline: %v", elapsed)
	}
	if acc.Len() != 2 {
		t.Fatalf("partial bytes dropped, len=%d", acc.Len())
	}

	q <- []byte("cd")
	got, ok := acc.PeekExact(context.Background(), 4, time.Now().Add(time.Second))
	if !ok || string(got) != "abcd" {
		t.Fatalf("retry failed: ok=%v got=%q", ok, got)
	}
}

func TestFillPastDeadlineStillUsesQueuedBytes(t *testing.T) {
	testlog.Start(t)
	q := make(chan []byte, 1)
	q <- []byte("xyz")
	acc := NewAccumulator(q)
	if !acc.Fill(context.Background(), 3, time.Now().Add(-time.Second)) {
		t.Fatalf("expected queued bytes to satisfy fill")
	}
}

func TestFillReportsClosedProducer(t *testing.T) {
	testlog.Start(t)
	q := make(chan []byte, 1)
	q <- []byte{9}
	close(q)
	acc := NewAccumulator(q)
	if acc.Fill(context.Background(), 2, time.Now().Add(time.Second)) {
		t.Fatalf("expected fill to fail on closed producer")
	}
	if !acc.Closed() || acc.Drained() {
		t.Fatalf("closed=%v drained=%v", acc.Closed(), acc.Drained())
	}
	acc.Consume(1)
	if !acc.Drained() {
		t.Fatalf("expected drained after consuming tail")
	}
}

func TestFillHonorsContext(t *testing.T) {
	testlog.Start(t)
	acc := NewAccumulator(make(chan []byte))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if acc.Fill(ctx, 1, time.Now().Add(time.Minute)) {
		t.Fatalf("expected cancelled fill to fail")
	}
}

type fragmentReader struct {
	parts [][]byte
	err   error
}

func (r *fragmentReader) Read(p []byte) (int, error) {
	if len(r.parts) == 0 {
		return 0, r.err
	}
	n := copy(p, r.parts[0])
	r.parts = r.parts[1:]
	return n, nil
}

func TestPumpForwardsBatchesInOrder(t *testing.T) {
	testlog.Start(t)
	r := &fragmentReader{parts: [][]byte{[]byte("he"), []byte("llo")}, err: io.EOF}
	out := make(chan []byte, 4)
	if err := Pump(context.Background(), r, out, 8); err != nil {
		t.Fatalf("pump: %v", err)
	}
	var got []byte
	for b := range out {
		got = append(got, b...)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected bytes: %q", got)
	}
}

func TestPumpSurfacesReadError(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("boom")
	out := make(chan []byte, 1)
	err := Pump(context.Background(), &fragmentReader{err: boom}, out, 8)
	if !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
	if _, ok := <-out; ok {
		t.Fatalf("expected closed queue")
	}
}
