package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	StartDelimiter byte = 0xAA
	StopDelimiter  byte = 0xBB

	// Size is the fixed length of every frame on the wire.
	Size        = 7
	PayloadSize = 4

	tagOffset     = 1
	payloadOffset = 2
	stopOffset    = payloadOffset + PayloadSize
)

var (
	ErrStreamEnded  = errors.New("frame: stream ended before start delimiter")
	ErrTruncated    = errors.New("frame: truncated frame")
	ErrFramingError = errors.New("frame: stop delimiter mismatch")
	ErrUnknownTag   = errors.New("frame: unknown tag")
)

// Tag selects the logical channel (axis) a value belongs to.
type Tag uint8

const (
	TagX Tag = 0x00
	TagY Tag = 0x01
	TagZ Tag = 0x02
)

// NumTags is the size of the closed tag set.
const NumTags = 3

// Tags lists every tag in transmission order.
var Tags = [NumTags]Tag{TagX, TagY, TagZ}

func (t Tag) Valid() bool {
	return t <= TagZ
}

// Index returns the position of t in Tags. Only meaningful for valid tags.
func (t Tag) Index() int {
	return int(t)
}

func (t Tag) String() string {
	switch t {
	case TagX:
		return "x"
	case TagY:
		return "y"
	case TagZ:
		return "z"
	default:
		return fmt.Sprintf("tag(0x%02x)", uint8(t))
	}
}

// Sample is one decoded frame.
type Sample struct {
	Tag   Tag
	Value float32
}

// Encode returns the 7 byte frame carrying value under tag.
func Encode(tag Tag, value float32) []byte {
	return AppendEncode(make([]byte, 0, Size), tag, value)
}

// AppendEncode appends the frame for (tag, value) to dst.
func AppendEncode(dst []byte, tag Tag, value float32) []byte {
	var buf [Size]byte
	buf[0] = StartDelimiter
	buf[tagOffset] = byte(tag)
	binary.LittleEndian.PutUint32(buf[payloadOffset:stopOffset], math.Float32bits(value))
	buf[stopOffset] = StopDelimiter
	return append(dst, buf[:]...)
}

// Decode reads one frame from r. Bytes preceding the start delimiter are
// discarded, so a stream that starts mid-frame or carries garbage
// resynchronizes on the next start delimiter.
//
// Payload bytes are not escaped: a payload containing StartDelimiter is only
// a problem when the reader is already misaligned, in which case it can be
// taken as a false frame start.
func Decode(r io.ByteReader) (Sample, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return Sample{}, fmt.Errorf("%w: %w", ErrStreamEnded, err)
		}
		if b == StartDelimiter {
			break
		}
	}

	tb, err := r.ReadByte()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: missing tag: %w", ErrTruncated, err)
	}
	tag := Tag(tb)
	if !tag.Valid() {
		return Sample{}, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, tb)
	}

	var payload [PayloadSize]byte
	for i := range payload {
		if payload[i], err = r.ReadByte(); err != nil {
			return Sample{}, fmt.Errorf("%w: payload %d/%d bytes: %w", ErrTruncated, i, PayloadSize, err)
		}
	}

	stop, err := r.ReadByte()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: missing stop delimiter: %w", ErrTruncated, err)
	}
	if stop != StopDelimiter {
		return Sample{}, fmt.Errorf("%w: got 0x%02x", ErrFramingError, stop)
	}

	return Sample{
		Tag:   tag,
		Value: math.Float32frombits(binary.LittleEndian.Uint32(payload[:])),
	}, nil
}

// DecodeBytes decodes the first frame found in b.
func DecodeBytes(b []byte) (Sample, error) {
	return Decode(bytes.NewReader(b))
}
