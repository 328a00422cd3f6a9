package protocol

import (
	"errors"
	"io"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 6

	// MaxPayloadSize is the maximum payload size. Full-tree mounts can
	// be large, so the length field is 4 bytes; the cap matches the
	// decoder's hard allocation ceiling.
	MaxPayloadSize = 16 * 1024 * 1024
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameHandshake FrameType = 0x00 // Connection setup
	FrameMount     FrameType = 0x01 // Server → Client full tree
	FrameDiff      FrameType = 0x02 // Server → Client minimal diff
	FrameEvent     FrameType = 0x03 // Client → Server events
	FrameControl   FrameType = 0x04 // Ping, resync, close
	FrameAck       FrameType = 0x05 // Acknowledgment
	FrameError     FrameType = 0x06 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameHandshake:
		return "Handshake"
	case FrameMount:
		return "Mount"
	case FrameDiff:
		return "Diff"
	case FrameEvent:
		return "Event"
	case FrameControl:
		return "Control"
	case FrameAck:
		return "Ack"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	FlagSequenced FrameFlags = 0x01 // Payload starts with a sequence number
	FlagResync    FrameFlags = 0x02 // Frame is part of a resync exchange
)

// Has reports whether the flags contain flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is one protocol message: a 6-byte header (type, flags, length)
// followed by the payload.
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame creates a frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode returns the frame as bytes, header included.
func (f *Frame) Encode() []byte {
	length := len(f.Payload)
	buf := make([]byte, FrameHeaderSize+length)
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	buf[2] = byte(length >> 24)
	buf[3] = byte(length >> 16)
	buf[4] = byte(length >> 8)
	buf[5] = byte(length)
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// EncodeSequenced prefixes a payload with its big-endian sequence
// number, for frames carrying FlagSequenced.
func EncodeSequenced(seq uint64, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	for i := 0; i < 8; i++ {
		buf[i] = byte(seq >> (56 - 8*i))
	}
	copy(buf[8:], payload)
	return buf
}

// DecodeSequenced splits a sequenced payload into its sequence number
// and the remaining bytes.
func DecodeSequenced(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	var seq uint64
	for i := 0; i < 8; i++ {
		seq = seq<<8 | uint64(data[i])
	}
	return seq, data[8:], nil
}

// DecodeFrame decodes a frame from data, which must contain the full
// header and payload.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	ft := FrameType(data[0])
	if ft > FrameError {
		return nil, ErrInvalidFrameType
	}
	flags := FrameFlags(data[1])
	length := int(data[2])<<24 | int(data[3])<<16 | int(data[4])<<8 | int(data[5])
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	if len(data) < FrameHeaderSize+length {
		return nil, io.ErrUnexpectedEOF
	}
	if len(data) > FrameHeaderSize+length {
		return nil, ErrTrailingData
	}
	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+length])
	return &Frame{Type: ft, Flags: flags, Payload: payload}, nil
}
