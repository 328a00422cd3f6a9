package protocol

// ControlType identifies the type of control message.
type ControlType uint8

const (
	ControlPing       ControlType = 0x01 // Client/server ping
	ControlPong       ControlType = 0x02 // Response to ping
	ControlResync     ControlType = 0x10 // Client requests a full re-mount
	ControlResyncDone ControlType = 0x11 // Server finished the resync
	ControlClose      ControlType = 0x20 // Session close
)

// String returns the string representation of the control type.
func (ct ControlType) String() string {
	switch ct {
	case ControlPing:
		return "Ping"
	case ControlPong:
		return "Pong"
	case ControlResync:
		return "Resync"
	case ControlResyncDone:
		return "ResyncDone"
	case ControlClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// CloseReason indicates why a session is being closed.
type CloseReason uint8

const (
	CloseNormal         CloseReason = 0x00 // Normal closure
	CloseGoingAway      CloseReason = 0x01 // Client/server going away
	CloseRenderFailed   CloseReason = 0x02 // Render cycle failed, no baseline committed
	CloseServerShutdown CloseReason = 0x03 // Server shutting down
	CloseError          CloseReason = 0x04 // Protocol or internal error
)

// String returns the string representation of the close reason.
func (cr CloseReason) String() string {
	switch cr {
	case CloseNormal:
		return "Normal"
	case CloseGoingAway:
		return "GoingAway"
	case CloseRenderFailed:
		return "RenderFailed"
	case CloseServerShutdown:
		return "ServerShutdown"
	case CloseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// PingPong is the payload for Ping and Pong messages.
type PingPong struct {
	Timestamp uint64 // Unix milliseconds
}

// ResyncRequest asks the server to re-send the complete committed tree.
// The client sends it on ErrUnknownComponent or any other local desync.
type ResyncRequest struct {
	LastSeq uint64 // Last sequence the client applied
}

// CloseMessage carries the reason a side is closing.
type CloseMessage struct {
	Reason  CloseReason
	Message string
}

// EncodeControl encodes a control message: one type byte and the
// type-specific payload.
func EncodeControl(ct ControlType, msg any) []byte {
	e := NewEncoder()
	e.WriteByte(byte(ct))
	switch m := msg.(type) {
	case *PingPong:
		e.WriteUint64(m.Timestamp)
	case *ResyncRequest:
		e.WriteUint64(m.LastSeq)
	case *CloseMessage:
		e.WriteByte(byte(m.Reason))
		e.WriteString(m.Message)
	}
	return e.Bytes()
}

// DecodeControl decodes a control message, returning the type and its
// payload (nil for types without one).
func DecodeControl(data []byte) (ControlType, any, error) {
	d := NewDecoder(data)
	tb, err := d.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	ct := ControlType(tb)
	switch ct {
	case ControlPing, ControlPong:
		ts, err := d.ReadUint64()
		if err != nil {
			return 0, nil, err
		}
		return ct, &PingPong{Timestamp: ts}, nil
	case ControlResync:
		seq, err := d.ReadUint64()
		if err != nil {
			return 0, nil, err
		}
		return ct, &ResyncRequest{LastSeq: seq}, nil
	case ControlClose:
		rb, err := d.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		msg, err := d.ReadString()
		if err != nil {
			return 0, nil, err
		}
		return ct, &CloseMessage{Reason: CloseReason(rb), Message: msg}, nil
	default:
		return ct, nil, nil
	}
}
