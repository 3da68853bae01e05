package asm

import (
	"encoding/binary"
	"fmt"
)

// Label is a use of a code label.
type Label struct {
	Tok  Token
	Name string
}

type labelDef struct {
	tok Token
	pos int
}

// LabelWidth selects how a label offset is encoded.
type LabelWidth int

const (
	LabelS16 LabelWidth = iota
	LabelU16
	LabelS32
)

type refPatch struct {
	pos int
	ref *Ref
}

type labelPatch struct {
	pos   int
	label Label
	// The offset is relative to base, or to baseLabel when it is set.
	base      int
	baseLabel *Label
	width     LabelWidth
}

// Writer accumulates big-endian class file data. Constant references and
// label offsets are written as zero placeholders and patched later by
// FillRefs and FillLabels.
type Writer struct {
	buf       []byte
	refs      []refPatch
	refsU8    []refPatch
	labels    []labelPatch
	pending8  map[int]bool
	pending16 map[int]bool
	pending32 map[int]bool
}

func NewWriter() *Writer {
	return &Writer{
		pending8:  map[int]bool{},
		pending16: map[int]bool{},
		pending32: map[int]bool{},
	}
}

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) U8(x uint8) { w.buf = append(w.buf, x) }
func (w *Writer) S8(x int8) { w.U8(uint8(x)) }
func (w *Writer) U16(x uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, x) }
func (w *Writer) S16(x int16) { w.U16(uint16(x)) }
func (w *Writer) U32(x uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, x) }
func (w *Writer) S32(x int32) { w.U32(uint32(x)) }

func (w *Writer) Write(b []byte) { w.buf = append(w.buf, b...) }

// Ref writes a two byte placeholder for a constant pool index.
func (w *Writer) Ref(r *Ref) {
	w.refs = append(w.refs, refPatch{pos: w.Len(), ref: r})
	w.U16(0)
}

// RefU8 writes a one byte placeholder for a constant pool index, as used by
// ldc.
func (w *Writer) RefU8(r *Ref) {
	w.refsU8 = append(w.refsU8, refPatch{pos: w.Len(), ref: r})
	w.U8(0)
}

func (w *Writer) Ph8() int {
	pos := w.Len()
	w.U8(0)
	w.pending8[pos] = true
	return pos
}

func (w *Writer) Ph16() int {
	pos := w.Len()
	w.U16(0)
	w.pending16[pos] = true
	return pos
}

func (w *Writer) Ph32() int {
	pos := w.Len()
	w.U32(0)
	w.pending32[pos] = true
	return pos
}

func (w *Writer) SetPh8(pos int, x uint8) {
	if !w.pending8[pos] {
		panic(fmt.Sprintf("no u8 placeholder at %d", pos))
	}
	w.buf[pos] = x
	delete(w.pending8, pos)
}

func (w *Writer) SetPh16(pos int, x uint16) {
	if !w.pending16[pos] {
		panic(fmt.Sprintf("no u16 placeholder at %d", pos))
	}
	binary.BigEndian.PutUint16(w.buf[pos:], x)
	delete(w.pending16, pos)
}

func (w *Writer) SetPh32(pos int, x uint32) {
	if !w.pending32[pos] {
		panic(fmt.Sprintf("no u32 placeholder at %d", pos))
	}
	binary.BigEndian.PutUint32(w.buf[pos:], x)
	delete(w.pending32, pos)
}

// Label writes a placeholder for the offset of l from the fixed position
// base.
func (w *Writer) Label(l Label, base int, width LabelWidth) {
	w.labels = append(w.labels, labelPatch{pos: w.labelPlaceholder(width), label: l, base: base, width: width})
}

// LabelFrom writes a placeholder for the distance between two labels.
func (w *Writer) LabelFrom(l Label, base Label, width LabelWidth) {
	w.labels = append(w.labels, labelPatch{pos: w.labelPlaceholder(width), label: l, baseLabel: &base, width: width})
}

func (w *Writer) labelPlaceholder(width LabelWidth) int {
	if width == LabelS32 {
		return w.Ph32()
	}
	return w.Ph16()
}

// LabelRange writes a start offset followed by a length, both unsigned
// 16 bit.
func (w *Writer) LabelRange(start, end Label) {
	w.Label(start, 0, LabelU16)
	w.LabelFrom(end, start, LabelU16)
}

func lookupLabel(l Label, defs map[string]labelDef) int {
	def, ok := defs[l.Name]
	if !ok {
		raise("Undefined label", l.Tok)
	}
	return def.pos
}

// FillLabels patches every label placeholder using the given definitions.
func (w *Writer) FillLabels(defs map[string]labelDef) {
	for _, p := range w.labels {
		target := lookupLabel(p.label, defs)
		base := p.base
		if p.baseLabel != nil {
			base = lookupLabel(*p.baseLabel, defs)
		}

		offset := int64(target) - int64(base)
		switch p.width {
		case LabelS16:
			if offset < -1<<15 || offset >= 1<<15 {
				raise(fmt.Sprintf("Label offset must fit in signed 16 bit int. (offset is %d)", offset), p.label.Tok)
			}
			w.SetPh16(p.pos, uint16(offset))
		case LabelU16:
			if offset < 0 || offset >= 1<<16 {
				raise(fmt.Sprintf("Label offset must fit in unsigned 16 bit int. (offset is %d)", offset), p.label.Tok)
			}
			w.SetPh16(p.pos, uint16(offset))
		case LabelS32:
			if offset < -1<<31 || offset >= 1<<31 {
				raise(fmt.Sprintf("Label offset must fit in signed 32 bit int. (offset is %d)", offset), p.label.Tok)
			}
			w.SetPh32(p.pos, uint32(offset))
		}
	}
	w.labels = nil
}

// FillRefs resolves every constant reference against pool.
func (w *Writer) FillRefs(pool *Pool) {
	for _, p := range w.refsU8 {
		w.buf[p.pos] = uint8(pool.resolve(p.ref))
	}
	for _, p := range w.refs {
		binary.BigEndian.PutUint16(w.buf[p.pos:], uint16(pool.resolve(p.ref)))
	}
	w.refsU8 = nil
	w.refs = nil
}

// Bytes returns the finished data. Every placeholder must have been filled.
func (w *Writer) Bytes() []byte {
	if len(w.refs)+len(w.refsU8) > 0 || len(w.pending8)+len(w.pending16)+len(w.pending32) > 0 {
		panic("writer has unfilled placeholders")
	}
	return w.buf
}

// Append copies other onto the end of w, carrying over its pending patches.
func (w *Writer) Append(other *Writer) {
	offset := w.Len()
	w.Write(other.buf)
	for _, p := range other.refs {
		w.refs = append(w.refs, refPatch{pos: p.pos + offset, ref: p.ref})
	}
	for _, p := range other.refsU8 {
		w.refsU8 = append(w.refsU8, refPatch{pos: p.pos + offset, ref: p.ref})
	}
	for _, p := range other.labels {
		p.pos += offset
		w.labels = append(w.labels, p)
	}
	for pos := range other.pending8 {
		w.pending8[pos+offset] = true
	}
	for pos := range other.pending16 {
		w.pending16[pos+offset] = true
	}
	for pos := range other.pending32 {
		w.pending32[pos+offset] = true
	}
}
