package transfer

import (
	"sort"
	"sync"
	"time"
)

const (
	OutcomeCompleted  = "completed"
	OutcomeIncomplete = "incomplete"
	OutcomeFailed     = "failed"
)

// ActiveFile is a point-in-time view of one in-progress descriptor.
type ActiveFile struct {
	ID       uint64    `json:"id"`
	Name     string    `json:"name"`
	Definite bool      `json:"definite"`
	Length   uint32    `json:"length,omitempty"`
	Received uint64    `json:"received"`
	Pending  int       `json:"pending_chunks"`
	Started  time.Time `json:"started"`
}

// Completed reports one file that left the table.
type Completed struct {
	ID       uint64        `json:"id"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Definite bool          `json:"definite"`
	Bytes    uint64        `json:"bytes"`
	Digest   string        `json:"digest,omitempty"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

type Snapshot struct {
	SessionID string       `json:"session_id"`
	Ended     bool         `json:"ended"`
	Frames    uint64       `json:"frames"`
	Active    []ActiveFile `json:"active"`
	Completed []Completed  `json:"completed"`
}

// StatusBoard mirrors receiver progress for readers on other goroutines.
// The receiver publishes into it; it never reads back.
type StatusBoard struct {
	mu        sync.RWMutex
	sessionID string
	ended     bool
	frames    uint64
	active    map[uint64]ActiveFile
	completed []Completed
	keep      int
}

// NewStatusBoard keeps at most keep completed entries, newest last.
func NewStatusBoard(keep int) *StatusBoard {
	if keep <= 0 {
		keep = 64
	}
	return &StatusBoard{
		active: make(map[uint64]ActiveFile),
		keep:   keep,
	}
}

func (b *StatusBoard) BeginSession(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionID = id
	b.ended = false
	b.frames = 0
	b.active = make(map[uint64]ActiveFile)
}

func (b *StatusBoard) CountFrame() {
	b.mu.Lock()
	b.frames++
	b.mu.Unlock()
}

func (b *StatusBoard) Track(f ActiveFile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[f.ID] = f
}

func (b *StatusBoard) Finish(c Completed) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.active, c.ID)
	b.completed = append(b.completed, c)
	if len(b.completed) > b.keep {
		b.completed = append([]Completed(nil), b.completed[len(b.completed)-b.keep:]...)
	}
}

func (b *StatusBoard) End() {
	b.mu.Lock()
	b.ended = true
	b.mu.Unlock()
}

func (b *StatusBoard) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	active := make([]ActiveFile, 0, len(b.active))
	for _, f := range b.active {
		active = append(active, f)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	completed := make([]Completed, len(b.completed))
	copy(completed, b.completed)
	return Snapshot{
		SessionID: b.sessionID,
		Ended:     b.ended,
		Frames:    b.frames,
		Active:    active,
		Completed: completed,
	}
}
