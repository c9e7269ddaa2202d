package transfer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zeebo/blake3"
)

var ErrDuplicateFile = errors.New("transfer: duplicate file id")

// Descriptor is the in-progress state of one file.
type Descriptor struct {
	ID       uint64
	Name     string
	Path     string
	Definite bool
	Length   uint32
	Started  time.Time

	// definite
	buffer  []byte
	written coverage

	// indefinite
	order  *Reorderer
	digest *blake3.Hasher
}

func newDefinite(id uint64, name, path string, length uint32) *Descriptor {
	return &Descriptor{
		ID:       id,
		Name:     name,
		Path:     path,
		Definite: true,
		Length:   length,
		Started:  time.Now(),
		buffer:   make([]byte, length),
	}
}

func newIndefinite(id uint64, name, path string) *Descriptor {
	return &Descriptor{
		ID:      id,
		Name:    name,
		Path:    path,
		Started: time.Now(),
		order:   NewReorderer(),
		digest:  blake3.New(),
	}
}

// NextExpected is the write cursor of an indefinite file.
func (d *Descriptor) NextExpected() uint64 {
	if d.order == nil {
		return 0
	}
	return d.order.Next()
}

// Pending reports stashed chunks awaiting a gap fill.
func (d *Descriptor) Pending() int {
	if d.order == nil {
		return 0
	}
	return d.order.Pending()
}

// Received reports distinct payload bytes applied so far.
func (d *Descriptor) Received() uint64 {
	if d.Definite {
		return d.written.covered()
	}
	return d.order.Next()
}

// Complete reports whether every byte of a definite file has arrived.
func (d *Descriptor) Complete() bool {
	return d.Definite && d.written.complete(uint64(d.Length))
}

// Buffer exposes the receive buffer of a definite file.
func (d *Descriptor) Buffer() []byte {
	return d.buffer
}

func (d *Descriptor) info() ActiveFile {
	return ActiveFile{
		ID:       d.ID,
		Name:     d.Name,
		Definite: d.Definite,
		Length:   d.Length,
		Received: d.Received(),
		Pending:  d.Pending(),
		Started:  d.Started,
	}
}

// Table maps file id to in-progress descriptor for one session.
type Table struct {
	files  map[uint64]*Descriptor
	failed map[uint64]struct{}
}

func NewTable() *Table {
	return &Table{
		files:  make(map[uint64]*Descriptor),
		failed: make(map[uint64]struct{}),
	}
}

func (t *Table) Insert(d *Descriptor) error {
	if _, ok := t.files[d.ID]; ok {
		return fmt.Errorf("%w: id=%d", ErrDuplicateFile, d.ID)
	}
	delete(t.failed, d.ID)
	t.files[d.ID] = d
	return nil
}

func (t *Table) Get(id uint64) (*Descriptor, bool) {
	d, ok := t.files[id]
	return d, ok
}

func (t *Table) Remove(id uint64) (*Descriptor, bool) {
	d, ok := t.files[id]
	if ok {
		delete(t.files, id)
	}
	return d, ok
}

func (t *Table) Len() int {
	return len(t.files)
}

// IDs returns the active ids in ascending order.
func (t *Table) IDs() []uint64 {
	out := make([]uint64, 0, len(t.files))
	for id := range t.files {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarkFailed removes id and remembers it so later chunks are discarded quietly.
func (t *Table) MarkFailed(id uint64) {
	delete(t.files, id)
	t.failed[id] = struct{}{}
}

func (t *Table) IsFailed(id uint64) bool {
	_, ok := t.failed[id]
	return ok
}
