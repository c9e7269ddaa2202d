package stream

import (
	"context"
	"time"
)

// Accumulator holds the not-yet-consumed tail of the incoming byte stream.
type Accumulator struct {
	queue  <-chan []byte
	buf    []byte
	closed bool
}

func NewAccumulator(queue <-chan []byte) *Accumulator {
	return &Accumulator{queue: queue}
}

// Len reports buffered bytes.
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Bytes returns the buffered bytes. The slice is valid until the next Fill or Consume.
func (a *Accumulator) Bytes() []byte {
	return a.buf
}

// Closed reports whether the producer queue has been closed.
func (a *Accumulator) Closed() bool {
	return a.closed
}

// Drained reports whether the producer is closed and nothing is buffered.
func (a *Accumulator) Drained() bool {
	return a.closed && len(a.buf) == 0
}

// Fill pulls deliveries from the queue until at least n bytes are buffered.
// It returns false if the deadline passes, ctx ends, or the producer closes
// first; whatever arrived stays buffered.
func (a *Accumulator) Fill(ctx context.Context, n int, deadline time.Time) bool {
	if len(a.buf) >= n {
		return true
	}
	if a.closed {
		return false
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for len(a.buf) < n {
		select {
		case batch, ok := <-a.queue:
			if !a.take(batch, ok) {
				return false
			}
			continue
		default:
		}

		select {
		case batch, ok := <-a.queue:
			if !a.take(batch, ok) {
				return false
			}
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (a *Accumulator) take(batch []byte, ok bool) bool {
	if !ok {
		a.closed = true
		return false
	}
	a.buf = append(a.buf, batch...)
	return true
}

// PeekExact returns the first n buffered bytes without consuming them.
func (a *Accumulator) PeekExact(ctx context.Context, n int, deadline time.Time) ([]byte, bool) {
	if !a.Fill(ctx, n, deadline) {
		return nil, false
	}
	return a.buf[:n], true
}

// Consume drops n bytes from the front of the buffer.
func (a *Accumulator) Consume(n int) {
	if n >= len(a.buf) {
		a.buf = nil
		return
	}
	a.buf = a.buf[n:]
}
