package protocol

import (
	"fmt"
	"sort"

	"github.com/treeline-dev/treeline/pkg/diff"
)

// Diff section flags. Absent sections occupy zero bytes.
const (
	diffHasReplace    = 0x01
	diffHasChanges    = 0x02
	diffHasComponents = 0x04
	diffHasRemoved    = 0x08
)

// Rows flags.
const rowsTruncated = 0x01

// Component payload tags.
const (
	compFull = 0x00
	compDiff = 0x01
)

// EncodeDiff encodes a diff. An empty diff encodes to nil: "nothing to
// send" is represented by not sending, never by an empty envelope.
func EncodeDiff(d *diff.Diff) []byte {
	if d.Empty() {
		return nil
	}
	e := NewEncoder()
	encodeDiffTo(e, d)
	return e.Bytes()
}

func encodeDiffTo(e *Encoder, d *diff.Diff) {
	var flags byte
	if d.Replace != nil {
		flags |= diffHasReplace
	}
	if len(d.Changes) > 0 {
		flags |= diffHasChanges
	}
	if len(d.Components) > 0 {
		flags |= diffHasComponents
	}
	if len(d.Removed) > 0 {
		flags |= diffHasRemoved
	}
	e.WriteByte(flags)

	if d.Replace != nil {
		EncodeTreeTo(e, d.Replace)
	}
	if len(d.Changes) > 0 {
		e.WriteUvarint(uint64(len(d.Changes)))
		for _, idx := range sortedSlotIndices(d.Changes) {
			e.WriteUvarint(uint64(idx))
			ch := d.Changes[idx]
			encodeChange(e, &ch)
		}
	}
	if len(d.Components) > 0 {
		ids := make([]int64, 0, len(d.Components))
		for id := range d.Components {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		e.WriteUvarint(uint64(len(ids)))
		for _, id := range ids {
			e.WriteUvarint(uint64(id))
			cc := d.Components[id]
			if cc.Full != nil {
				e.WriteByte(compFull)
				EncodeTreeTo(e, cc.Full)
			} else {
				e.WriteByte(compDiff)
				encodeDiffTo(e, cc.Diff)
			}
		}
	}
	if len(d.Removed) > 0 {
		e.WriteUvarint(uint64(len(d.Removed)))
		for _, id := range d.Removed {
			e.WriteUvarint(uint64(id))
		}
	}
}

func encodeChange(e *Encoder, ch *diff.Change) {
	e.WriteByte(byte(ch.Kind))
	switch ch.Kind {
	case diff.ChangeLeaf:
		e.WriteString(ch.Leaf)
	case diff.ChangeTree:
		encodeDiffTo(e, ch.Tree)
	case diff.ChangeSlot:
		encodeSlot(e, ch.Slot)
	case diff.ChangeRows:
		encodeRows(e, ch.Rows)
	case diff.ChangeComponent:
		e.WriteUvarint(uint64(ch.CID))
	}
}

func encodeRows(e *Encoder, rc *diff.RowsChange) {
	var flags byte
	if rc.Truncate >= 0 {
		flags |= rowsTruncated
	}
	e.WriteByte(flags)
	if rc.Truncate >= 0 {
		e.WriteUvarint(uint64(rc.Truncate))
	}
	e.WriteUvarint(uint64(len(rc.RowChanges)))
	for _, rowIdx := range sortedSlotIndices(rc.RowChanges) {
		e.WriteUvarint(uint64(rowIdx))
		row := rc.RowChanges[rowIdx]
		e.WriteUvarint(uint64(len(row)))
		for _, slotIdx := range sortedSlotIndices(row) {
			e.WriteUvarint(uint64(slotIdx))
			ch := row[slotIdx]
			encodeChange(e, &ch)
		}
	}
	e.WriteUvarint(uint64(len(rc.Appended)))
	for _, row := range rc.Appended {
		encodeRow(e, row)
	}
}

func sortedSlotIndices[V any](m map[int]V) []int {
	idx := make([]int, 0, len(m))
	for i := range m {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// DecodeDiff decodes a diff payload. Nil or empty input decodes to an
// empty diff.
func DecodeDiff(data []byte) (*diff.Diff, error) {
	if len(data) == 0 {
		return &diff.Diff{}, nil
	}
	d := NewDecoder(data)
	out, err := decodeDiffFrom(d)
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return nil, ErrTrailingData
	}
	return out, nil
}

func decodeDiffFrom(d *Decoder) (*diff.Diff, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	flags, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	out := &diff.Diff{}

	if flags&diffHasReplace != 0 {
		if out.Replace, err = DecodeTreeFrom(d); err != nil {
			return nil, err
		}
	}
	if flags&diffHasChanges != 0 {
		count, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		out.Changes = make(map[int]diff.Change, count)
		for i := 0; i < count; i++ {
			idx, err := d.ReadCount()
			if err != nil {
				return nil, err
			}
			ch, err := decodeChange(d)
			if err != nil {
				return nil, err
			}
			out.Changes[idx] = ch
		}
	}
	if flags&diffHasComponents != 0 {
		count, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		out.Components = make(map[int64]diff.ComponentChange, count)
		for i := 0; i < count; i++ {
			id, err := d.ReadUvarint()
			if err != nil {
				return nil, err
			}
			tag, err := d.ReadByte()
			if err != nil {
				return nil, err
			}
			var cc diff.ComponentChange
			switch tag {
			case compFull:
				if cc.Full, err = DecodeTreeFrom(d); err != nil {
					return nil, err
				}
			case compDiff:
				if cc.Diff, err = decodeDiffFrom(d); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("protocol: unknown component tag 0x%02x", tag)
			}
			out.Components[int64(id)] = cc
		}
	}
	if flags&diffHasRemoved != 0 {
		count, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		out.Removed = make([]int64, count)
		for i := 0; i < count; i++ {
			id, err := d.ReadUvarint()
			if err != nil {
				return nil, err
			}
			out.Removed[i] = int64(id)
		}
	}
	return out, nil
}

func decodeChange(d *Decoder) (diff.Change, error) {
	kind, err := d.ReadByte()
	if err != nil {
		return diff.Change{}, err
	}
	switch diff.ChangeKind(kind) {
	case diff.ChangeLeaf:
		v, err := d.ReadString()
		if err != nil {
			return diff.Change{}, err
		}
		return diff.Change{Kind: diff.ChangeLeaf, Leaf: v}, nil
	case diff.ChangeTree:
		nested, err := decodeDiffFrom(d)
		if err != nil {
			return diff.Change{}, err
		}
		return diff.Change{Kind: diff.ChangeTree, Tree: nested}, nil
	case diff.ChangeSlot:
		slot, err := decodeSlot(d)
		if err != nil {
			return diff.Change{}, err
		}
		return diff.Change{Kind: diff.ChangeSlot, Slot: &slot}, nil
	case diff.ChangeRows:
		rc, err := decodeRows(d)
		if err != nil {
			return diff.Change{}, err
		}
		return diff.Change{Kind: diff.ChangeRows, Rows: rc}, nil
	case diff.ChangeComponent:
		id, err := d.ReadUvarint()
		if err != nil {
			return diff.Change{}, err
		}
		return diff.Change{Kind: diff.ChangeComponent, CID: int64(id)}, nil
	default:
		return diff.Change{}, fmt.Errorf("protocol: unknown change kind 0x%02x", kind)
	}
}

func decodeRows(d *Decoder) (*diff.RowsChange, error) {
	flags, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	rc := &diff.RowsChange{Truncate: -1}
	if flags&rowsTruncated != 0 {
		n, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		rc.Truncate = n
	}
	nRows, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < nRows; i++ {
		rowIdx, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		nSlots, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		row := make(map[int]diff.Change, nSlots)
		for j := 0; j < nSlots; j++ {
			slotIdx, err := d.ReadCount()
			if err != nil {
				return nil, err
			}
			ch, err := decodeChange(d)
			if err != nil {
				return nil, err
			}
			row[slotIdx] = ch
		}
		if rc.RowChanges == nil {
			rc.RowChanges = make(map[int]map[int]diff.Change, nRows)
		}
		rc.RowChanges[rowIdx] = row
	}
	nAppended, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < nAppended; i++ {
		row, err := decodeRow(d, -1)
		if err != nil {
			return nil, err
		}
		rc.Appended = append(rc.Appended, row)
	}
	return rc, nil
}
