package session

import (
	"fmt"
	"time"

	"github.com/treeline-dev/treeline/pkg/diff"
	"github.com/treeline-dev/treeline/pkg/protocol"
	"github.com/treeline-dev/treeline/pkg/rendered"
)

// snapshotVersion is bumped on incompatible snapshot format changes.
// A version mismatch on load is treated as not-found: the connection
// falls back to a fresh mount.
const snapshotVersion uint8 = 1

// Snapshot is the persistable render state of one connection: the last
// committed root tree, every live component instance, and the diff
// sequence the state corresponds to.
type Snapshot struct {
	SessionID  string
	Seq        uint64
	Root       *rendered.Rendered
	Components []diff.InstanceSnapshot
	SavedAt    time.Time
}

// Marshal encodes the snapshot with the wire codec, so there is exactly
// one serialization of rendered trees in the system.
func (s *Snapshot) Marshal() []byte {
	e := protocol.NewEncoder()
	e.WriteByte(snapshotVersion)
	e.WriteString(s.SessionID)
	e.WriteUvarint(s.Seq)
	e.WriteUint64(uint64(s.SavedAt.UnixMilli()))
	protocol.EncodeTreeTo(e, s.Root)
	e.WriteUvarint(uint64(len(s.Components)))
	for _, c := range s.Components {
		e.WriteString(c.Key)
		e.WriteUvarint(uint64(c.ID))
		e.WriteUvarint(uint64(c.Parent))
		protocol.EncodeTreeTo(e, c.Tree)
	}
	return e.Bytes()
}

// UnmarshalSnapshot decodes a snapshot produced by Marshal.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	d := protocol.NewDecoder(data)
	version, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d", ErrNotFound, version)
	}
	snap := &Snapshot{}
	if snap.SessionID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if snap.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	ms, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	snap.SavedAt = time.UnixMilli(int64(ms))
	if snap.Root, err = protocol.DecodeTreeFrom(d); err != nil {
		return nil, err
	}
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		var c diff.InstanceSnapshot
		if c.Key, err = d.ReadString(); err != nil {
			return nil, err
		}
		id, err := d.ReadUvarint()
		if err != nil {
			return nil, err
		}
		c.ID = int64(id)
		parent, err := d.ReadUvarint()
		if err != nil {
			return nil, err
		}
		c.Parent = int64(parent)
		if c.Tree, err = protocol.DecodeTreeFrom(d); err != nil {
			return nil, err
		}
		snap.Components = append(snap.Components, c)
	}
	if !d.EOF() {
		return nil, fmt.Errorf("session: %d trailing bytes in snapshot", d.Remaining())
	}
	return snap, nil
}
