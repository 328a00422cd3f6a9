package protocol

// Version is the current protocol version. Bumped only on incompatible
// wire changes; the server rejects clients speaking another major.
const Version uint8 = 1

// HandshakeStatus is the server's verdict on a handshake.
type HandshakeStatus uint8

const (
	HandshakeOK              HandshakeStatus = 0x00
	HandshakeVersionMismatch HandshakeStatus = 0x01
	HandshakeSessionUnknown  HandshakeStatus = 0x02
	HandshakeServerBusy      HandshakeStatus = 0x03
	HandshakeInvalidFormat   HandshakeStatus = 0x04
)

// String returns the string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeSessionUnknown:
		return "SessionUnknown"
	case HandshakeServerBusy:
		return "ServerBusy"
	case HandshakeInvalidFormat:
		return "InvalidFormat"
	default:
		return "Unknown"
	}
}

// Handshake is the client's opening message. SessionID is empty for a
// fresh connection, or a previous id when resuming within the server's
// resume window.
type Handshake struct {
	Version   uint8
	SessionID string
}

// HandshakeReply is the server's answer. On HandshakeOK the assigned
// (or resumed) session id follows.
type HandshakeReply struct {
	Status    HandshakeStatus
	SessionID string
}

// EncodeHandshake encodes a client handshake.
func EncodeHandshake(h *Handshake) []byte {
	e := NewEncoder()
	e.WriteByte(h.Version)
	e.WriteString(h.SessionID)
	return e.Bytes()
}

// DecodeHandshake decodes a client handshake.
func DecodeHandshake(data []byte) (*Handshake, error) {
	d := NewDecoder(data)
	version, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sid, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &Handshake{Version: version, SessionID: sid}, nil
}

// EncodeHandshakeReply encodes a server handshake reply.
func EncodeHandshakeReply(r *HandshakeReply) []byte {
	e := NewEncoder()
	e.WriteByte(byte(r.Status))
	e.WriteString(r.SessionID)
	return e.Bytes()
}

// DecodeHandshakeReply decodes a server handshake reply.
func DecodeHandshakeReply(data []byte) (*HandshakeReply, error) {
	d := NewDecoder(data)
	sb, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sid, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &HandshakeReply{Status: HandshakeStatus(sb), SessionID: sid}, nil
}
