package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrTruncated = errors.New("unexpected end of data")

// Reader is a big-endian cursor over a byte slice. The first failed read
// is remembered; every read after it returns zero values.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data)-r.off {
		r.err = fmt.Errorf("reading %d bytes at offset %d: %w", n, r.off, ErrTruncated)
		r.off = len(r.data)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) S8() int8 { return int8(r.U8()) }

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *Reader) S16() int16 { return int16(r.U16()) }

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *Reader) S32() int32 { return int32(r.U32()) }

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Raw returns the next n bytes without copying.
func (r *Reader) Raw(n int) []byte {
	b := r.take(n)
	if b == nil && r.err == nil {
		return []byte{}
	}
	return b
}

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Size is the number of bytes left.
func (r *Reader) Size() int { return len(r.data) - r.off }

func (r *Reader) Done() bool { return r.off >= len(r.data) }

// Fork returns an independent reader positioned at the same offset.
func (r *Reader) Fork() *Reader {
	return &Reader{data: r.data, off: r.off, err: r.err}
}

func (r *Reader) Err() error { return r.err }
