package codec

import (
	"encoding/binary"
	"errors"
	"io"
)

// writer accumulates an encoded chunk tree. It never fails: writes only
// ever append to a growing []byte, so every method here returns nothing --
// any real I/O failure (short write to the destination file) happens once,
// at the very end, via a single io.Writer.Write call the caller makes.
type writer struct {
	buf []byte
}

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) writeByte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) writeBytes(b []byte) { w.buf = append(w.buf, b...) }

// writeUvarint appends an unsigned LEB128 varint. encoding/binary's
// AppendUvarint already implements exactly this wire shape, so there's no
// reason to hand-roll it.
func (w *writer) writeUvarint(v uint64) { w.buf = binary.AppendUvarint(w.buf, v) }

// writeVarint appends a zig-zag-encoded signed varint, used for position
// deltas and other fields that can go negative.
func (w *writer) writeVarint(v int64) { w.writeUvarint(zigzagEncode(v)) }

// writeLenPrefixed writes len(b) as a varint followed by b -- the shape
// every string and byte-blob chunk payload uses.
func (w *writer) writeLenPrefixed(b []byte) {
	w.writeUvarint(uint64(len(b)))
	w.writeBytes(b)
}

func zigzagEncode(v int64) uint64 { return uint64((v << 1) ^ (v >> 63)) }
func zigzagDecode(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }

// reader walks a byte slice left to right, tracking its absolute offset
// (from the start of the whole file) for error reporting.
type reader struct {
	data   []byte
	pos    int
	origin int // offset of data[0] within the original file, for error messages
}

func newReader(data []byte, origin int) *reader {
	return &reader{data: data, origin: origin}
}

func (r *reader) offset() int { return r.origin + r.pos }

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errMalformed(r.offset(), "unexpected end of input")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, errMalformed(r.offset(), "truncated: wanted %d bytes, have %d", n, r.remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// readUvarint decodes an unsigned LEB128 varint via encoding/binary.Uvarint
// over the remaining slice.
func (r *reader) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n == 0 {
		return 0, errMalformed(r.offset(), "truncated varint")
	}
	if n < 0 {
		return 0, errMalformed(r.offset(), "varint overflows 64 bits")
	}
	r.pos += n
	return v, nil
}

func (r *reader) readVarint() (int64, error) {
	v, err := r.readUvarint()
	if err != nil {
		return 0, err
	}
	return zigzagDecode(v), nil
}

// readInt reads a varint and range-checks it fits an int (lengths/counts
// are never meant to approach 2^64 and a file claiming otherwise is
// malformed, not merely large).
func (r *reader) readInt() (int, error) {
	v, err := r.readUvarint()
	if err != nil {
		return 0, err
	}
	if v > 1<<40 {
		return 0, errMalformed(r.offset(), "implausible length %d", v)
	}
	return int(v), nil
}

func (r *reader) readLenPrefixed() ([]byte, error) {
	n, err := r.readInt()
	if err != nil {
		return nil, err
	}
	return r.readBytes(n)
}

func (r *reader) readString() (string, error) {
	b, err := r.readLenPrefixed()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var errShortWrite = errors.New("codec: short write")

// flushTo writes the accumulated buffer to dst in one call.
func (w *writer) flushTo(dst io.Writer) error {
	n, err := dst.Write(w.buf)
	if err != nil {
		return err
	}
	if n != len(w.buf) {
		return errShortWrite
	}
	return nil
}
