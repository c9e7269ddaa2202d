package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/edgexfer/internal/protocol/schema"
)

var (
	ErrIncomplete      = errors.New("frame: incomplete frame")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrNotEncodable    = errors.New("frame: frame kind not encodable")
)

// Kind classifies a frame by its tag.
type Kind uint8

const (
	KindError Kind = iota
	KindStart
	KindChunk
	KindEnd
	KindAck
	KindTransmissionEnd
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindChunk:
		return "chunk"
	case KindEnd:
		return "end"
	case KindAck:
		return "ack"
	case KindTransmissionEnd:
		return "transmission_end"
	default:
		return "error"
	}
}

// KindOf maps a wire tag to its kind. Unrecognized tags are KindError.
func KindOf(tag uint16) Kind {
	switch tag {
	case schema.TagStart:
		return KindStart
	case schema.TagChunk:
		return KindChunk
	case schema.TagEnd:
		return KindEnd
	case schema.TagAck:
		return KindAck
	case schema.TagTransmissionEnd:
		return KindTransmissionEnd
	default:
		return KindError
	}
}

// Frame is one decoded protocol message. Only the fields of its kind are set.
type Frame struct {
	Tag      uint16
	FileID   uint64
	Name     string
	Length   uint32
	Definite bool
	Offset   uint64
	Payload  []byte
}

func (f Frame) Kind() Kind {
	return KindOf(f.Tag)
}

func Start(id uint64, name string, definite bool, length uint32) Frame {
	if !definite {
		length = 0
	}
	return Frame{Tag: schema.TagStart, FileID: id, Name: name, Definite: definite, Length: length}
}

func Chunk(id, offset uint64, payload []byte) Frame {
	return Frame{Tag: schema.TagChunk, FileID: id, Offset: offset, Payload: payload}
}

func End(id uint64) Frame {
	return Frame{Tag: schema.TagEnd, FileID: id}
}

func Ack() Frame {
	return Frame{Tag: schema.TagAck}
}

func TransmissionEnd() Frame {
	return Frame{Tag: schema.TagTransmissionEnd}
}

// Limits constrains decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 8 * 1024 * 1024}
}

// EncodedLen returns the wire size of f.
func EncodedLen(f Frame) int {
	l, ok := schema.Lookup(f.Tag)
	if !ok {
		return schema.TagWidth
	}
	if f.Tag == schema.TagChunk {
		return l.FixedLen() + len(f.Payload)
	}
	return l.FixedLen()
}

// Append encodes f onto dst.
func Append(dst []byte, f Frame, limits Limits) ([]byte, error) {
	switch f.Kind() {
	case KindStart:
		if err := schema.ValidateName(f.Name); err != nil {
			return dst, err
		}
	case KindChunk:
		if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) {
			return dst, fmt.Errorf("%w: len=%d max=%d", ErrPayloadTooLarge, len(f.Payload), limits.MaxPayloadBytes)
		}
	case KindError:
		return dst, fmt.Errorf("%w: tag=%d", ErrNotEncodable, f.Tag)
	}

	base := len(dst)
	dst = append(dst, make([]byte, EncodedLen(f))...)
	buf := dst[base:]
	binary.BigEndian.PutUint16(buf[0:schema.TagWidth], f.Tag)

	switch f.Kind() {
	case KindStart:
		binary.BigEndian.PutUint64(buf[schema.StartFileIDOffset:], f.FileID)
		buf[schema.StartNameLenOffset] = byte(len(f.Name))
		copy(buf[schema.StartNameOffset:schema.StartNameOffset+schema.NameWidth], f.Name)
		binary.BigEndian.PutUint32(buf[schema.StartFileLenOffset:], f.Length)
		if f.Definite {
			buf[schema.StartDefiniteOffset] = 1
		}
	case KindChunk:
		binary.BigEndian.PutUint64(buf[schema.ChunkFileIDOffset:], f.FileID)
		binary.BigEndian.PutUint64(buf[schema.ChunkOffsetOffset:], f.Offset)
		binary.BigEndian.PutUint32(buf[schema.ChunkLengthOffset:], uint32(len(f.Payload)))
		copy(buf[schema.ChunkHeaderLen:], f.Payload)
	case KindEnd:
		binary.BigEndian.PutUint64(buf[schema.EndFileIDOffset:], f.FileID)
	}
	return dst, nil
}

// Encode returns the wire bytes of f.
func Encode(f Frame, limits Limits) ([]byte, error) {
	return Append(make([]byte, 0, EncodedLen(f)), f, limits)
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	b, err := Encode(f, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode parses one frame from the front of b and returns the bytes it spans.
// When b does not yet hold the whole frame it returns ErrIncomplete with the
// total length required so far, and never a partial frame. An unrecognized
// tag yields a KindError frame spanning only the tag.
func Decode(b []byte, limits Limits) (Frame, int, error) {
	if len(b) < schema.TagWidth {
		return Frame{}, schema.TagWidth, ErrIncomplete
	}
	tag := binary.BigEndian.Uint16(b[0:schema.TagWidth])
	layout, ok := schema.Lookup(tag)
	if !ok {
		return Frame{Tag: tag}, schema.TagWidth, nil
	}
	fixed := layout.FixedLen()
	if len(b) < fixed {
		return Frame{}, fixed, ErrIncomplete
	}

	f := Frame{Tag: tag}
	switch KindOf(tag) {
	case KindStart:
		f.FileID = binary.BigEndian.Uint64(b[schema.StartFileIDOffset:])
		nameLen := int(b[schema.StartNameLenOffset])
		f.Name = string(b[schema.StartNameOffset : schema.StartNameOffset+nameLen])
		f.Length = binary.BigEndian.Uint32(b[schema.StartFileLenOffset:])
		f.Definite = b[schema.StartDefiniteOffset] != 0
		return f, fixed, nil
	case KindChunk:
		f.FileID = binary.BigEndian.Uint64(b[schema.ChunkFileIDOffset:])
		f.Offset = binary.BigEndian.Uint64(b[schema.ChunkOffsetOffset:])
		length := binary.BigEndian.Uint32(b[schema.ChunkLengthOffset:])
		if length > limits.MaxPayloadBytes {
			return Frame{}, fixed, fmt.Errorf("%w: len=%d max=%d", ErrPayloadTooLarge, length, limits.MaxPayloadBytes)
		}
		total := fixed + int(length)
		if len(b) < total {
			return Frame{}, total, ErrIncomplete
		}
		f.Payload = make([]byte, length)
		copy(f.Payload, b[fixed:total])
		return f, total, nil
	case KindEnd:
		f.FileID = binary.BigEndian.Uint64(b[schema.EndFileIDOffset:])
		return f, fixed, nil
	default:
		return f, fixed, nil
	}
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	buf := make([]byte, schema.TagWidth)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}
	for {
		f, n, err := Decode(buf, limits)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			return Frame{}, err
		}
		more := make([]byte, n-len(buf))
		if _, err := io.ReadFull(r, more); err != nil {
			if errors.Is(err, io.EOF) {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}
		buf = append(buf, more...)
	}
}
