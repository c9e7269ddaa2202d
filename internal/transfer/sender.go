package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/danmuck/edgexfer/internal/observability"
	"github.com/danmuck/edgexfer/internal/protocol/frame"
	"github.com/danmuck/edgexfer/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

var (
	ErrTransmissionEnded = errors.New("transfer: transmission already ended")
	ErrStreamClosed      = errors.New("transfer: stream closed")
	ErrSourceTooLarge    = errors.New("transfer: source exceeds 4-byte length field")
)

type SenderConfig struct {
	ChunkSize int
	Limits    frame.Limits
	// TerminateStreams sends End when an indefinite stream is closed.
	TerminateStreams bool
}

func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		ChunkSize: 64 * 1024,
		Limits:    frame.DefaultLimits(),
	}
}

func (c SenderConfig) WithDefaults() SenderConfig {
	def := DefaultSenderConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	if uint64(c.ChunkSize) > uint64(c.Limits.MaxPayloadBytes) {
		c.ChunkSize = int(c.Limits.MaxPayloadBytes)
	}
	return c
}

// Sender frames files onto one writer. Frames from concurrent sends
// interleave at frame granularity.
type Sender struct {
	cfg    SenderConfig
	mu     sync.Mutex
	w      io.Writer
	nextID atomic.Uint64
	ended  bool
}

func NewSender(w io.Writer, cfg SenderConfig) *Sender {
	return &Sender{cfg: cfg.WithDefaults(), w: w}
}

// NextID allocates a file id unique within this sender.
func (s *Sender) NextID() uint64 {
	return s.nextID.Add(1)
}

func (s *Sender) ChunkSize() int {
	return s.cfg.ChunkSize
}

// WriteFrame writes one encoded frame.
func (s *Sender) WriteFrame(f frame.Frame) error {
	b, err := frame.Encode(f, s.cfg.Limits)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrTransmissionEnded
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if f.Kind() == frame.KindTransmissionEnd {
		s.ended = true
	}
	observability.RecordFrameSent(f.Kind().String(), len(f.Payload))
	return nil
}

// SendBytes sends data as a definite file.
func (s *Sender) SendBytes(ctx context.Context, name string, data []byte) (uint64, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: len=%d", ErrSourceTooLarge, len(data))
	}
	id := s.NextID()
	return id, s.SendDefinite(ctx, id, name, bytes.NewReader(data), uint32(len(data)))
}

// SendFile sends the file at path as a definite file named name.
func (s *Sender) SendFile(ctx context.Context, name, path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s size=%d", ErrSourceTooLarge, path, info.Size())
	}
	id := s.NextID()
	return id, s.SendDefinite(ctx, id, name, f, uint32(info.Size()))
}

// SendDefinite emits Start, chunks covering [0,length) in order, then End.
// r must yield exactly length bytes.
func (s *Sender) SendDefinite(ctx context.Context, id uint64, name string, r io.Reader, length uint32) error {
	if err := schema.ValidateName(name); err != nil {
		return err
	}
	if err := s.WriteFrame(frame.Start(id, name, true, length)); err != nil {
		return err
	}
	buf := make([]byte, s.cfg.ChunkSize)
	var offset uint64
	for offset < uint64(length) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := uint64(len(buf))
		if remaining := uint64(length) - offset; remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return fmt.Errorf("transfer: read id=%d offset=%d: %w", id, offset, err)
		}
		if err := s.WriteFrame(frame.Chunk(id, offset, buf[:n])); err != nil {
			return err
		}
		offset += n
	}
	if err := s.WriteFrame(frame.End(id)); err != nil {
		return err
	}
	log.Debug().Msgf("transfer.Sender definite id=%d name=%q length=%d", id, name, length)
	return nil
}

// SendStream copies r to a new indefinite file until r reports EOF.
func (s *Sender) SendStream(ctx context.Context, name string, r io.Reader) (uint64, error) {
	st, err := s.OpenStream(name)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, s.cfg.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return st.ID(), err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := st.Write(buf[:n]); err != nil {
				return st.ID(), err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return st.ID(), st.Close()
			}
			return st.ID(), rerr
		}
	}
}

// OpenStream announces an indefinite file and returns a writer for it.
func (s *Sender) OpenStream(name string) (*Stream, error) {
	if err := schema.ValidateName(name); err != nil {
		return nil, err
	}
	id := s.NextID()
	if err := s.WriteFrame(frame.Start(id, name, false, 0)); err != nil {
		return nil, err
	}
	return &Stream{s: s, id: id, name: name}, nil
}

// Finish emits TransmissionEnd. Later calls are no-ops.
func (s *Sender) Finish() error {
	s.mu.Lock()
	ended := s.ended
	s.mu.Unlock()
	if ended {
		return nil
	}
	err := s.WriteFrame(frame.TransmissionEnd())
	if errors.Is(err, ErrTransmissionEnded) {
		return nil
	}
	return err
}

// Stream is the producer side of one indefinite file. Each Write is sent as
// one or more chunks at the running offset.
type Stream struct {
	s      *Sender
	id     uint64
	name   string
	offset uint64
	closed bool
}

func (st *Stream) ID() uint64 {
	return st.id
}

// Offset is the number of bytes sent so far.
func (st *Stream) Offset() uint64 {
	return st.offset
}

func (st *Stream) Write(p []byte) (int, error) {
	if st.closed {
		return 0, ErrStreamClosed
	}
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > st.s.cfg.ChunkSize {
			n = st.s.cfg.ChunkSize
		}
		if err := st.s.WriteFrame(frame.Chunk(st.id, st.offset, p[:n])); err != nil {
			return written, err
		}
		st.offset += uint64(n)
		written += n
		p = p[n:]
	}
	return written, nil
}

// Close ends the stream locally; End goes on the wire only with TerminateStreams.
func (st *Stream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	log.Debug().Msgf("transfer.Stream close id=%d name=%q bytes=%d", st.id, st.name, st.offset)
	if !st.s.cfg.TerminateStreams {
		return nil
	}
	return st.s.WriteFrame(frame.End(st.id))
}
