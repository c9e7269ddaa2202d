package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/edgexfer/internal/observability"
	"github.com/danmuck/edgexfer/internal/protocol/frame"
	"github.com/danmuck/edgexfer/internal/protocol/schema"
	"github.com/danmuck/edgexfer/internal/protocol/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownFile      = errors.New("transfer: chunk for unknown file id")
	ErrSessionTruncated = errors.New("transfer: input closed before transmission end")
	ErrFileTooLarge     = errors.New("transfer: file exceeds size limit")
	ErrChunkOutOfRange  = errors.New("transfer: chunk outside declared length")
)

// FileError is fatal to one file only. The session keeps going.
type FileError struct {
	ID   uint64
	Name string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("transfer: file id=%d name=%q %s: %v", e.ID, e.Name, e.Op, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Progress is the result of one ReceiveOne call.
type Progress int

const (
	NoProgress Progress = iota
	Progressed
	SessionEnded
	InputClosed
)

func (p Progress) String() string {
	switch p {
	case Progressed:
		return "progressed"
	case SessionEnded:
		return "session_ended"
	case InputClosed:
		return "input_closed"
	default:
		return "no_progress"
	}
}

// UnknownFilePolicy selects how a chunk for an id never announced is handled.
type UnknownFilePolicy string

const (
	UnknownFileAbort UnknownFilePolicy = "abort"
	UnknownFileDrop  UnknownFilePolicy = "drop"
)

type ReceiverConfig struct {
	OutputDir     string
	FrameDeadline time.Duration
	Limits        frame.Limits
	MaxFileBytes  uint32
	UnknownFiles  UnknownFilePolicy
	SessionID     string
	Status        *StatusBoard
	OnComplete    func(Completed)
}

func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		FrameDeadline: 10 * time.Second,
		Limits:        frame.DefaultLimits(),
		MaxFileBytes:  1 << 30,
		UnknownFiles:  UnknownFileAbort,
	}
}

func (c ReceiverConfig) WithDefaults() ReceiverConfig {
	def := DefaultReceiverConfig()
	if c.FrameDeadline <= 0 {
		c.FrameDeadline = def.FrameDeadline
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = def.MaxFileBytes
	}
	if c.UnknownFiles == "" {
		c.UnknownFiles = def.UnknownFiles
	}
	return c
}

// Receiver decodes frames from an accumulator and applies them to its table.
// It is not safe for concurrent use; one goroutine drives it.
type Receiver struct {
	cfg   ReceiverConfig
	acc   *stream.Accumulator
	table *Table
	sink  Sink
	ended bool
	log   zerolog.Logger
}

func NewReceiver(acc *stream.Accumulator, cfg ReceiverConfig) *Receiver {
	cfg = cfg.WithDefaults()
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.Status != nil {
		cfg.Status.BeginSession(cfg.SessionID)
	}
	return &Receiver{
		cfg:   cfg,
		acc:   acc,
		table: NewTable(),
		sink:  Sink{Root: cfg.OutputDir},
		log:   log.With().Str("session", cfg.SessionID).Logger(),
	}
}

func (r *Receiver) SessionID() string {
	return r.cfg.SessionID
}

func (r *Receiver) Table() *Table {
	return r.table
}

// Ended reports whether TransmissionEnd has been observed.
func (r *Receiver) Ended() bool {
	return r.ended
}

// Run drives ReceiveOne until TransmissionEnd or until input is exhausted.
// FileErrors are logged and do not stop the session.
func (r *Receiver) Run(ctx context.Context) error {
	r.log.Info().Msg("transfer.Receiver run")
	for {
		p, err := r.ReceiveOne(ctx)
		if err != nil {
			var fe *FileError
			if errors.As(err, &fe) {
				r.log.Warn().Err(err).Msg("transfer.Receiver file failed")
				continue
			}
			r.log.Error().Err(err).Msg("transfer.Receiver session aborted")
			return err
		}
		switch p {
		case SessionEnded:
			r.log.Info().Msg("transfer.Receiver transmission end")
			return nil
		case InputClosed:
			return r.inputClosed()
		case NoProgress:
			r.log.Debug().Msgf("transfer.Receiver no progress buffered=%d active=%d", r.acc.Len(), r.table.Len())
		}
	}
}

// ReceiveOne decodes and dispatches at most one frame. When the bytes for the
// next frame do not arrive within FrameDeadline it returns NoProgress and the
// partial frame stays buffered for the next call.
func (r *Receiver) ReceiveOne(ctx context.Context) (Progress, error) {
	if r.ended {
		return SessionEnded, nil
	}
	deadline := time.Now().Add(r.cfg.FrameDeadline)
	need := schema.TagWidth
	for {
		b, ok := r.acc.PeekExact(ctx, need, deadline)
		if !ok {
			if err := ctx.Err(); err != nil {
				return NoProgress, err
			}
			if r.acc.Closed() {
				return InputClosed, nil
			}
			return NoProgress, nil
		}
		f, n, err := frame.Decode(b, r.cfg.Limits)
		if errors.Is(err, frame.ErrIncomplete) {
			need = n
			continue
		}
		if err != nil {
			return NoProgress, err
		}
		r.acc.Consume(n)
		return r.dispatch(f)
	}
}

func (r *Receiver) dispatch(f frame.Frame) (Progress, error) {
	observability.RecordFrameReceived(f.Kind().String(), len(f.Payload))
	if r.cfg.Status != nil {
		r.cfg.Status.CountFrame()
	}
	switch f.Kind() {
	case frame.KindStart:
		return Progressed, r.handleStart(f)
	case frame.KindChunk:
		return Progressed, r.handleChunk(f)
	case frame.KindEnd:
		return Progressed, r.handleEnd(f)
	case frame.KindAck:
		r.log.Debug().Msg("transfer.Receiver ack")
		return Progressed, nil
	case frame.KindTransmissionEnd:
		r.ended = true
		r.closeRemaining()
		if r.cfg.Status != nil {
			r.cfg.Status.End()
		}
		return SessionEnded, nil
	default:
		r.log.Warn().Msgf("transfer.Receiver unrecognized tag=%d", f.Tag)
		return Progressed, nil
	}
}

func (r *Receiver) handleStart(f frame.Frame) error {
	if _, ok := r.table.Get(f.FileID); ok {
		return &FileError{ID: f.FileID, Name: f.Name, Op: "start", Err: ErrDuplicateFile}
	}
	path, err := r.sink.Resolve(f.Name)
	if err != nil {
		return r.failID(f.FileID, f.Name, f.Definite, "resolve", err)
	}

	var d *Descriptor
	if f.Definite {
		if f.Length > r.cfg.MaxFileBytes {
			err := fmt.Errorf("%w: length=%d max=%d", ErrFileTooLarge, f.Length, r.cfg.MaxFileBytes)
			return r.failID(f.FileID, f.Name, true, "start", err)
		}
		d = newDefinite(f.FileID, f.Name, path, f.Length)
	} else {
		if err := r.sink.Create(path); err != nil {
			return r.failID(f.FileID, f.Name, false, "create", err)
		}
		d = newIndefinite(f.FileID, f.Name, path)
	}
	if err := r.table.Insert(d); err != nil {
		return &FileError{ID: f.FileID, Name: f.Name, Op: "start", Err: err}
	}
	r.track(d)
	r.log.Debug().Msgf("transfer.Receiver start id=%d name=%q definite=%v length=%d", d.ID, d.Name, d.Definite, d.Length)
	return nil
}

func (r *Receiver) handleChunk(f frame.Frame) error {
	d, ok := r.table.Get(f.FileID)
	if !ok {
		if r.table.IsFailed(f.FileID) {
			observability.RecordChunkDropped("failed_file")
			return nil
		}
		observability.RecordChunkDropped("unknown_file")
		if r.cfg.UnknownFiles == UnknownFileDrop {
			r.log.Warn().Msgf("transfer.Receiver dropped chunk for unknown id=%d offset=%d len=%d", f.FileID, f.Offset, len(f.Payload))
			return nil
		}
		return fmt.Errorf("%w: id=%d offset=%d", ErrUnknownFile, f.FileID, f.Offset)
	}

	if d.Definite {
		end := f.Offset + uint64(len(f.Payload))
		if f.Offset > uint64(d.Length) || end > uint64(d.Length) {
			err := fmt.Errorf("%w: offset=%d len=%d length=%d", ErrChunkOutOfRange, f.Offset, len(f.Payload), d.Length)
			return r.fail(d, "chunk", err)
		}
		copy(d.buffer[f.Offset:end], f.Payload)
		if d.written.add(f.Offset, end) < uint64(len(f.Payload)) {
			observability.RecordChunkDropped("overlap")
			r.log.Debug().Msgf("transfer.Receiver overlapping chunk id=%d offset=%d len=%d", d.ID, f.Offset, len(f.Payload))
		}
		r.track(d)
		return nil
	}

	before := d.order.Pending()
	outcome, drained, err := d.order.Accept(f.Offset, f.Payload, func(p []byte) error {
		if err := r.sink.Append(d.Path, p); err != nil {
			return err
		}
		_, _ = d.digest.Write(p)
		return nil
	})
	observability.AddStashed(d.order.Pending() - before)
	if err != nil {
		return r.fail(d, "append", err)
	}
	switch outcome {
	case Empty:
		r.log.Trace().Msgf("transfer.Receiver empty chunk id=%d offset=%d", d.ID, f.Offset)
		return nil
	case Duplicate:
		observability.RecordChunkDropped("duplicate")
		r.log.Warn().Msgf("transfer.Receiver duplicate chunk id=%d offset=%d next=%d", d.ID, f.Offset, d.order.Next())
	}
	r.log.Trace().Msgf("transfer.Receiver chunk id=%d offset=%d outcome=%s drained=%d next=%d", d.ID, f.Offset, outcome, drained, d.order.Next())
	r.track(d)
	return nil
}

func (r *Receiver) handleEnd(f frame.Frame) error {
	d, ok := r.table.Remove(f.FileID)
	if !ok {
		if !r.table.IsFailed(f.FileID) {
			r.log.Warn().Msgf("transfer.Receiver end for unknown id=%d", f.FileID)
		}
		return nil
	}
	return r.close(d)
}

// close finalizes a descriptor already removed from the table.
func (r *Receiver) close(d *Descriptor) error {
	if d.Definite {
		if err := r.sink.Persist(d.Path, d.buffer); err != nil {
			return r.fail(d, "persist", err)
		}
		outcome := OutcomeCompleted
		if !d.Complete() {
			outcome = OutcomeIncomplete
		}
		r.complete(d, Completed{Bytes: d.Received(), Digest: Digest(d.buffer), Outcome: outcome})
		return nil
	}

	outcome := OutcomeCompleted
	if n := d.order.Discard(); n > 0 {
		observability.AddStashed(-n)
		outcome = OutcomeIncomplete
		r.log.Warn().Msgf("transfer.Receiver gap at close id=%d next=%d discarded=%d", d.ID, d.order.Next(), n)
	}
	r.complete(d, Completed{Bytes: d.order.Next(), Digest: hexSum(d.digest), Outcome: outcome})
	return nil
}

// closeRemaining ends every open descriptor: indefinite files are closed as
// written so far, definite files that never saw End are dropped unpersisted.
func (r *Receiver) closeRemaining() {
	for _, id := range r.table.IDs() {
		d, _ := r.table.Remove(id)
		if d.Definite {
			r.log.Warn().Msgf("transfer.Receiver definite file never ended id=%d name=%q", d.ID, d.Name)
			r.complete(d, Completed{Bytes: d.Received(), Outcome: OutcomeIncomplete})
			continue
		}
		if err := r.close(d); err != nil {
			r.log.Warn().Err(err).Msg("transfer.Receiver close stream")
		}
	}
}

func (r *Receiver) inputClosed() error {
	files, trailing := r.table.Len(), r.acc.Len()
	if files == 0 && trailing == 0 {
		r.log.Info().Msg("transfer.Receiver input closed")
		return nil
	}
	r.closeRemaining()
	return fmt.Errorf("%w: files=%d trailing_bytes=%d", ErrSessionTruncated, files, trailing)
}

func (r *Receiver) fail(d *Descriptor, op string, err error) error {
	if d.order != nil {
		observability.AddStashed(-d.order.Discard())
	}
	return r.failID(d.ID, d.Name, d.Definite, op, err)
}

func (r *Receiver) failID(id uint64, name string, definite bool, op string, err error) error {
	r.table.MarkFailed(id)
	observability.RecordTransfer(definite, OutcomeFailed)
	c := Completed{ID: id, Name: name, Definite: definite, Outcome: OutcomeFailed, Err: err.Error()}
	r.publish(c)
	return &FileError{ID: id, Name: name, Op: op, Err: err}
}

func (r *Receiver) complete(d *Descriptor, c Completed) {
	c.ID = d.ID
	c.Name = d.Name
	c.Path = d.Path
	c.Definite = d.Definite
	c.Duration = time.Since(d.Started)
	observability.RecordTransfer(d.Definite, c.Outcome)
	r.log.Info().
		Uint64("id", c.ID).
		Str("path", c.Path).
		Uint64("bytes", c.Bytes).
		Str("digest", c.Digest).
		Str("outcome", c.Outcome).
		Msg("transfer closed")
	r.publish(c)
}

func (r *Receiver) publish(c Completed) {
	if r.cfg.Status != nil {
		r.cfg.Status.Finish(c)
	}
	if r.cfg.OnComplete != nil {
		r.cfg.OnComplete(c)
	}
}

func (r *Receiver) track(d *Descriptor) {
	if r.cfg.Status != nil {
		r.cfg.Status.Track(d.info())
	}
}
