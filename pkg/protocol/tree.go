package protocol

import (
	"fmt"

	"github.com/treeline-dev/treeline/pkg/rendered"
)

// Slot kind tags on the wire. These mirror rendered.SlotKind but are
// pinned here so the model can evolve without silently changing bytes.
const (
	wireLeaf          = 0x00
	wireTree          = 0x01
	wireComprehension = 0x02
	wireComponent     = 0x03
)

// EncodeTree encodes a full rendered tree: the statics sequence, then
// every dynamic slot in order. Component slots encode as their bare id;
// their payloads travel in the diff's component side map.
func EncodeTree(tree *rendered.Rendered) []byte {
	e := NewEncoder()
	EncodeTreeTo(e, tree)
	return e.Bytes()
}

// EncodeTreeTo encodes a full tree into an existing encoder.
func EncodeTreeTo(e *Encoder, tree *rendered.Rendered) {
	e.WriteUvarint(uint64(len(tree.Statics)))
	for _, s := range tree.Statics {
		e.WriteString(s)
	}
	for i := range tree.Dynamics {
		encodeSlot(e, &tree.Dynamics[i])
	}
}

func encodeSlot(e *Encoder, slot *rendered.Slot) {
	switch slot.Kind {
	case rendered.KindLeaf:
		e.WriteByte(wireLeaf)
		e.WriteString(slot.Leaf)
	case rendered.KindTree:
		e.WriteByte(wireTree)
		EncodeTreeTo(e, slot.Tree)
	case rendered.KindComprehension:
		e.WriteByte(wireComprehension)
		encodeComprehension(e, slot.Comp)
	case rendered.KindComponent:
		e.WriteByte(wireComponent)
		e.WriteUvarint(uint64(slot.Ref.ID))
	}
}

// encodeComprehension writes the shared statics once, then each row's
// slots against that shape.
func encodeComprehension(e *Encoder, c *rendered.Comprehension) {
	e.WriteUvarint(uint64(len(c.Statics)))
	for _, s := range c.Statics {
		e.WriteString(s)
	}
	e.WriteUvarint(uint64(len(c.Rows)))
	for _, row := range c.Rows {
		encodeRow(e, row)
	}
}

func encodeRow(e *Encoder, row []rendered.Slot) {
	e.WriteUvarint(uint64(len(row)))
	for i := range row {
		encodeSlot(e, &row[i])
	}
}

// DecodeTree decodes a full rendered tree and rejects trailing bytes.
func DecodeTree(data []byte) (*rendered.Rendered, error) {
	d := NewDecoder(data)
	tree, err := DecodeTreeFrom(d)
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return nil, ErrTrailingData
	}
	return tree, nil
}

// DecodeTreeFrom decodes a full tree from an existing decoder.
func DecodeTreeFrom(d *Decoder) (*rendered.Rendered, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	nStatics, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if nStatics == 0 {
		return nil, fmt.Errorf("protocol: tree with no statics")
	}
	statics := make([]string, nStatics)
	for i := range statics {
		if statics[i], err = d.ReadString(); err != nil {
			return nil, err
		}
	}
	dynamics := make([]rendered.Slot, nStatics-1)
	for i := range dynamics {
		slot, err := decodeSlot(d)
		if err != nil {
			return nil, err
		}
		dynamics[i] = slot
	}
	return &rendered.Rendered{Statics: statics, Dynamics: dynamics}, nil
}

func decodeSlot(d *Decoder) (rendered.Slot, error) {
	tag, err := d.ReadByte()
	if err != nil {
		return rendered.Slot{}, err
	}
	switch tag {
	case wireLeaf:
		v, err := d.ReadString()
		if err != nil {
			return rendered.Slot{}, err
		}
		return rendered.LeafSlot(v), nil
	case wireTree:
		tree, err := DecodeTreeFrom(d)
		if err != nil {
			return rendered.Slot{}, err
		}
		return rendered.TreeSlot(tree), nil
	case wireComprehension:
		comp, err := decodeComprehension(d)
		if err != nil {
			return rendered.Slot{}, err
		}
		return rendered.ComprehensionSlot(comp), nil
	case wireComponent:
		id, err := d.ReadUvarint()
		if err != nil {
			return rendered.Slot{}, err
		}
		return rendered.Slot{Kind: rendered.KindComponent, Ref: &rendered.ComponentRef{ID: int64(id)}}, nil
	default:
		return rendered.Slot{}, fmt.Errorf("protocol: unknown slot tag 0x%02x", tag)
	}
}

func decodeComprehension(d *Decoder) (*rendered.Comprehension, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	nStatics, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if nStatics == 0 {
		return nil, fmt.Errorf("protocol: comprehension with no statics")
	}
	statics := make([]string, nStatics)
	for i := range statics {
		if statics[i], err = d.ReadString(); err != nil {
			return nil, err
		}
	}
	nRows, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	rows := make([][]rendered.Slot, 0, nRows)
	for i := 0; i < nRows; i++ {
		row, err := decodeRow(d, nStatics-1)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return &rendered.Comprehension{Statics: statics, Rows: rows}, nil
}

func decodeRow(d *Decoder, want int) ([]rendered.Slot, error) {
	width, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if want >= 0 && width != want {
		return nil, fmt.Errorf("protocol: row width %d does not match statics shape %d", width, want)
	}
	row := make([]rendered.Slot, width)
	for i := range row {
		if row[i], err = decodeSlot(d); err != nil {
			return nil, err
		}
	}
	return row, nil
}
