package protocol

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// wireWriter appends fixed-layout little-endian fields to a payload buffer.
// Variable-length fields are length-prefixed and must come after every
// fixed-width field of the payload so decode stays O(1) addressable.
type wireWriter struct {
	buf []byte
}

func (w *wireWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *wireWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *wireWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *wireWriter) i16(v int16)  { w.u16(uint16(v)) }
func (w *wireWriter) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *wireWriter) flag(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *wireWriter) vec3(v mgl32.Vec3) {
	w.f32(v[0])
	w.f32(v[1])
	w.f32(v[2])
}

func (w *wireWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// wireReader consumes a payload with bounds checking. The first failure
// latches ErrMalformedPacket; subsequent reads return zero values so call
// sites can decode a whole struct and check done() once at the end.
type wireReader struct {
	buf []byte
	off int
	err error
}

func (r *wireReader) fail() {
	if r.err == nil {
		r.err = ErrMalformedPacket
	}
}

func (r *wireReader) take(n int) []byte {
	if r.err != nil || n < 0 || len(r.buf)-r.off < n {
		r.fail()
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *wireReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *wireReader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *wireReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *wireReader) i16() int16 { return int16(r.u16()) }

// f32 rejects non-finite values: nothing in the protocol legitimately
// carries NaN or Inf, and letting one through would poison position math.
func (r *wireReader) f32() float32 {
	v := math.Float32frombits(r.u32())
	if r.err == nil {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			r.fail()
			return 0
		}
	}
	return v
}

func (r *wireReader) flag() bool { return r.u8() != 0 }

func (r *wireReader) vec3() mgl32.Vec3 {
	x := r.f32()
	y := r.f32()
	z := r.f32()
	return mgl32.Vec3{x, y, z}
}

func (r *wireReader) str() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if uint64(n) > uint64(len(r.buf)-r.off) {
		r.fail()
		return ""
	}
	return string(r.take(int(n)))
}

// done reports the latched error, or ErrMalformedPacket when the payload
// carries trailing bytes the message layout does not account for.
func (r *wireReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return ErrMalformedPacket
	}
	return nil
}
