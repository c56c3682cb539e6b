package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"stellarcore/pkg/types"
)

// writer is an append-only little-endian byte builder. Encoding is
// infallible for well-formed values (spec.md §4.1's codec contract), so
// writer methods never return an error.
type writer struct {
	buf []byte
}

func newWriter(sizeHint int) *writer {
	return &writer{buf: make([]byte, 0, sizeHint)}
}

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *writer) f64(v float64) { w.u64(math.Float64bits(v)) }

func (w *writer) str(s string) {
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) vec3(v types.Vector3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *writer) quat(q types.Quaternion) {
	w.f32(q.X)
	w.f32(q.Y)
	w.f32(q.Z)
	w.f32(q.W)
}

// reader walks a frozen byte slice, never advancing past its end.
type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedFrame, n, r.remaining())
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) f64() (float64, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *reader) str() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", fmt.Errorf("%w: length %d overruns frame (%d bytes left)", ErrInvalidString, n, r.remaining())
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	if !utf8.Valid(b) {
		return "", ErrInvalidString
	}
	return string(b), nil
}

func (r *reader) vec3() (types.Vector3, error) {
	x, err := r.f32()
	if err != nil {
		return types.Vector3{}, err
	}
	y, err := r.f32()
	if err != nil {
		return types.Vector3{}, err
	}
	z, err := r.f32()
	if err != nil {
		return types.Vector3{}, err
	}
	return types.Vector3{X: x, Y: y, Z: z}, nil
}

func (r *reader) quat() (types.Quaternion, error) {
	x, err := r.f32()
	if err != nil {
		return types.Quaternion{}, err
	}
	y, err := r.f32()
	if err != nil {
		return types.Quaternion{}, err
	}
	z, err := r.f32()
	if err != nil {
		return types.Quaternion{}, err
	}
	wv, err := r.f32()
	if err != nil {
		return types.Quaternion{}, err
	}
	return types.Quaternion{X: x, Y: y, Z: z, W: wv}, nil
}
