package protocol

// Event is a client → server state-change trigger: a named action with
// an optional value, sequenced so the server can detect gaps.
type Event struct {
	Seq   uint64
	Name  string
	Value string
}

// EncodeEvent encodes an event.
func EncodeEvent(ev *Event) []byte {
	e := NewEncoder()
	e.WriteUvarint(ev.Seq)
	e.WriteString(ev.Name)
	e.WriteString(ev.Value)
	return e.Bytes()
}

// DecodeEvent decodes an event.
func DecodeEvent(data []byte) (*Event, error) {
	d := NewDecoder(data)
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	name, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	value, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &Event{Seq: seq, Name: name, Value: value}, nil
}

// Ack acknowledges the latest diff sequence the client has applied.
type Ack struct {
	Seq uint64
}

// EncodeAck encodes an acknowledgment.
func EncodeAck(a *Ack) []byte {
	e := NewEncoder()
	e.WriteUvarint(a.Seq)
	return e.Bytes()
}

// DecodeAck decodes an acknowledgment.
func DecodeAck(data []byte) (*Ack, error) {
	d := NewDecoder(data)
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return &Ack{Seq: seq}, nil
}
