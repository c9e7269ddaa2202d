package transfer

import "sort"

// Outcome describes what Accept did with one chunk.
type Outcome int

const (
	Applied Outcome = iota
	Stashed
	Duplicate
	Empty
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Stashed:
		return "stashed"
	case Empty:
		return "empty"
	default:
		return "duplicate"
	}
}

// Reorderer turns out-of-order chunks of an append-only file into a gap-free,
// strictly increasing sequence of writes.
type Reorderer struct {
	next    uint64
	offsets []uint64
	pending map[uint64][]byte
	bytes   int
}

func NewReorderer() *Reorderer {
	return &Reorderer{pending: make(map[uint64][]byte)}
}

// Next is the offset of the first byte not yet written.
func (r *Reorderer) Next() uint64 {
	return r.next
}

func (r *Reorderer) Pending() int {
	return len(r.offsets)
}

func (r *Reorderer) PendingBytes() int {
	return r.bytes
}

// Offsets returns stashed offsets in ascending order.
func (r *Reorderer) Offsets() []uint64 {
	out := make([]uint64, len(r.offsets))
	copy(out, r.offsets)
	return out
}

// Accept routes payload at offset. Chunks at the cursor are written through
// and any stashed chunks made contiguous are drained after them. Chunks past
// the cursor are stashed. Empty payloads are ignored. Bytes below the cursor are never rewritten: a chunk
// entirely below it is a duplicate, one straddling it contributes its tail.
// drained counts stashed chunks written after the arriving one.
func (r *Reorderer) Accept(offset uint64, payload []byte, write func([]byte) error) (outcome Outcome, drained int, err error) {
	if len(payload) == 0 {
		return Empty, 0, nil
	}
	end := offset + uint64(len(payload))
	if end <= r.next {
		return Duplicate, 0, nil
	}
	if offset > r.next {
		if _, ok := r.pending[offset]; ok {
			return Duplicate, 0, nil
		}
		r.stash(offset, payload)
		return Stashed, 0, nil
	}

	if err := write(payload[r.next-offset:]); err != nil {
		return Applied, 0, err
	}
	r.next = end
	drained, err = r.drain(write)
	return Applied, drained, err
}

func (r *Reorderer) stash(offset uint64, payload []byte) {
	i := sort.Search(len(r.offsets), func(i int) bool { return r.offsets[i] >= offset })
	r.offsets = append(r.offsets, 0)
	copy(r.offsets[i+1:], r.offsets[i:])
	r.offsets[i] = offset
	r.pending[offset] = payload
	r.bytes += len(payload)
}

func (r *Reorderer) pop() (uint64, []byte) {
	off := r.offsets[0]
	r.offsets = r.offsets[1:]
	p := r.pending[off]
	delete(r.pending, off)
	r.bytes -= len(p)
	return off, p
}

func (r *Reorderer) drain(write func([]byte) error) (int, error) {
	n := 0
	for len(r.offsets) > 0 && r.offsets[0] <= r.next {
		off, p := r.pop()
		end := off + uint64(len(p))
		if end <= r.next {
			continue
		}
		if err := write(p[r.next-off:]); err != nil {
			return n, err
		}
		r.next = end
		n++
	}
	return n, nil
}

// Discard drops every stashed chunk and returns how many were held.
func (r *Reorderer) Discard() int {
	n := len(r.offsets)
	r.offsets = nil
	r.pending = make(map[uint64][]byte)
	r.bytes = 0
	return n
}
