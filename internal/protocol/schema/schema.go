package schema

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Message tags from the wire contract. Any other tag decodes as an error frame.
const (
	TagStart           uint16 = 0
	TagChunk           uint16 = 1
	TagEnd             uint16 = 2
	TagAck             uint16 = 3
	TagTransmissionEnd uint16 = 4
)

// Field widths in bytes.
const (
	TagWidth         = 2
	FileIDWidth      = 8
	NameLenWidth     = 1
	NameWidth        = 255
	FileLengthWidth  = 4
	DefiniteWidth    = 1
	ChunkOffsetWidth = 8
	ChunkLengthWidth = 4
)

// MaxNameLen is the largest name a Start frame can carry.
const MaxNameLen = NameWidth

// Field offsets from the first tag byte.
const (
	StartFileIDOffset   = TagWidth
	StartNameLenOffset  = StartFileIDOffset + FileIDWidth
	StartNameOffset     = StartNameLenOffset + NameLenWidth
	StartFileLenOffset  = StartNameOffset + NameWidth
	StartDefiniteOffset = StartFileLenOffset + FileLengthWidth
	StartLen            = StartDefiniteOffset + DefiniteWidth

	ChunkFileIDOffset = TagWidth
	ChunkOffsetOffset = ChunkFileIDOffset + FileIDWidth
	ChunkLengthOffset = ChunkOffsetOffset + ChunkOffsetWidth
	ChunkHeaderLen    = ChunkLengthOffset + ChunkLengthWidth

	EndFileIDOffset = TagWidth
	EndLen          = EndFileIDOffset + FileIDWidth

	AckLen             = TagWidth
	TransmissionEndLen = TagWidth
)

// Field names used by layouts and validation errors.
const (
	FieldTag         = "tag"
	FieldFileID      = "file_id"
	FieldNameLen     = "name_length"
	FieldName        = "name"
	FieldFileLength  = "file_length"
	FieldDefinite    = "is_definite"
	FieldChunkOffset = "chunk_offset"
	FieldChunkLength = "chunk_length"
)

type Field struct {
	Name  string
	Width int
}

// Layout is the ordered fixed-width portion of one message type, tag included.
// Variable payload (chunk bytes) follows the fixed portion and is not listed.
type Layout struct {
	Tag    uint16
	Name   string
	Fields []Field
}

// FixedLen returns the byte length of the fixed portion.
func (l Layout) FixedLen() int {
	total := 0
	for _, f := range l.Fields {
		total += f.Width
	}
	return total
}

// Offset returns the byte offset of a named field.
func (l Layout) Offset(name string) (int, bool) {
	off := 0
	for _, f := range l.Fields {
		if f.Name == name {
			return off, true
		}
		off += f.Width
	}
	return 0, false
}

var layouts = map[uint16]Layout{
	TagStart: {
		Tag:  TagStart,
		Name: "start",
		Fields: []Field{
			{FieldTag, TagWidth},
			{FieldFileID, FileIDWidth},
			{FieldNameLen, NameLenWidth},
			{FieldName, NameWidth},
			{FieldFileLength, FileLengthWidth},
			{FieldDefinite, DefiniteWidth},
		},
	},
	TagChunk: {
		Tag:  TagChunk,
		Name: "chunk",
		Fields: []Field{
			{FieldTag, TagWidth},
			{FieldFileID, FileIDWidth},
			{FieldChunkOffset, ChunkOffsetWidth},
			{FieldChunkLength, ChunkLengthWidth},
		},
	},
	TagEnd: {
		Tag:  TagEnd,
		Name: "end",
		Fields: []Field{
			{FieldTag, TagWidth},
			{FieldFileID, FileIDWidth},
		},
	},
	TagAck: {
		Tag:    TagAck,
		Name:   "ack",
		Fields: []Field{{FieldTag, TagWidth}},
	},
	TagTransmissionEnd: {
		Tag:    TagTransmissionEnd,
		Name:   "transmission_end",
		Fields: []Field{{FieldTag, TagWidth}},
	},
}

// Lookup returns the layout for tag. Unknown tags report false.
func Lookup(tag uint16) (Layout, bool) {
	l, ok := layouts[tag]
	return l, ok
}

// TagName returns a printable name for tag.
func TagName(tag uint16) string {
	if l, ok := layouts[tag]; ok {
		return l.Name
	}
	return fmt.Sprintf("unknown(%d)", tag)
}

type ValidationError struct {
	Tag    uint16
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: tag=%s: %s", TagName(e.Tag), e.Reason)
	}
	return fmt.Sprintf("schema: tag=%s field=%s: %s", TagName(e.Tag), e.Field, e.Reason)
}

// ValidateName enforces the Start name cap. An empty name is accepted.
func ValidateName(name string) error {
	if len(name) > MaxNameLen {
		log.Error().Msgf("schema.ValidateName too long len=%d max=%d", len(name), MaxNameLen)
		return ValidationError{Tag: TagStart, Field: FieldName, Reason: fmt.Sprintf("length %d exceeds %d", len(name), MaxNameLen)}
	}
	return nil
}
