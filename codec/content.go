package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// encodeContentChunk builds a content sub-chunk payload: a leading flag
// byte (1 = LZ4-compressed, 0 = raw), then either the raw bytes or an
// uncompressed-length varint followed by an LZ4 stream frame.
func encodeContentChunk(data []byte, compress bool) []byte {
	w := &writer{}
	if !compress {
		w.writeByte(0)
		w.writeBytes(data)
		return w.bytes()
	}
	w.writeByte(1)
	w.writeUvarint(uint64(len(data)))

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	// Best-effort compression; lz4.Writer only fails on a short write to
	// its underlying io.Writer, which bytes.Buffer never does.
	_, _ = zw.Write(data)
	_ = zw.Close()
	w.writeBytes(buf.Bytes())
	return w.bytes()
}

// decodeContentChunk is the inverse of encodeContentChunk: it reads both
// compressed and uncompressed chunks regardless of which the writer chose.
func decodeContentChunk(payload []byte, origin int) ([]byte, error) {
	r := newReader(payload, origin)
	flag, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return payload[r.pos:], nil
	}
	if flag != 1 {
		return nil, errMalformed(r.offset(), "unknown content chunk flag %d", flag)
	}
	n, err := r.readInt()
	if err != nil {
		return nil, err
	}
	zr := lz4.NewReader(bytes.NewReader(payload[r.pos:]))
	out := make([]byte, n)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, wrapf(err, r.offset(), KindMalformed, "lz4 decompression failed")
	}
	return out, nil
}
