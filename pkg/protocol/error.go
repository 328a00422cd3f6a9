package protocol

// ErrorCode identifies the type of error reported over the wire.
type ErrorCode uint16

const (
	ErrUnknown       ErrorCode = 0x0000 // Unknown error
	ErrInvalidFrame  ErrorCode = 0x0001 // Malformed frame
	ErrInvalidEvent  ErrorCode = 0x0002 // Malformed event
	ErrRenderFailed  ErrorCode = 0x0003 // Template compiler failed; no diff emitted
	ErrInternal      ErrorCode = 0x0004 // Internal invariant failure; render aborted
	ErrDesync        ErrorCode = 0x0005 // Client and server tree caches diverged
	ErrRateLimited   ErrorCode = 0x0006 // Too many events
	ErrSessionClosed ErrorCode = 0x0007 // Session no longer valid
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrInvalidEvent:
		return "InvalidEvent"
	case ErrRenderFailed:
		return "RenderFailed"
	case ErrInternal:
		return "Internal"
	case ErrDesync:
		return "Desync"
	case ErrRateLimited:
		return "RateLimited"
	case ErrSessionClosed:
		return "SessionClosed"
	default:
		return "Unknown"
	}
}

// ErrorMessage is the payload of a FrameError.
type ErrorMessage struct {
	Code    ErrorCode
	Message string
	Fatal   bool // if true, the connection is being closed
}

// EncodeErrorMessage encodes an ErrorMessage.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteUint16(uint16(em.Code))
	e.WriteBool(em.Fatal)
	e.WriteString(em.Message)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}
	msg, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{Code: ErrorCode(code), Message: msg, Fatal: fatal}, nil
}
