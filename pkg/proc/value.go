package proc

import (
	"encoding/binary"
	"math"
)

// Value is a dynamically typed register value. The concrete type is one of
//
//	uint8, uint16, uint32, uint64
//	int8, int16, int32, int64
//	float32, float64
//	Byte64, Byte128
//
// Reads of long double registers yield float64: the 80-bit value is
// decoded, Go having no extended precision float type.
type Value interface{}

// valueSize returns the storage width of v, or 0 if v is not a legal
// register value type.
func valueSize(v Value) uint {
	switch v.(type) {
	case uint8, int8:
		return 1
	case uint16, int16:
		return 2
	case uint32, int32, float32:
		return 4
	case uint64, int64, float64:
		return 8
	case Byte64:
		return 8
	case Byte128:
		return 16
	}
	return 0
}

// widen converts v into a 16-byte little-endian image suitable for copying
// into the register's storage. Signed integers destined for a uint register
// are converted to the register's width first, so negative values fill the
// whole register. Floats destined for a wider float register are cast up.
func widen(info RegInfo, v Value) Byte128 {
	var out Byte128

	if f, ok := asFloat(v); ok {
		switch info.Format {
		case FormatDouble:
			binary.LittleEndian.PutUint64(out[:], math.Float64bits(f))
			return out
		case FormatLongDouble:
			putFloat80(out[:], f)
			return out
		}
	}

	if n, ok := asSigned(v); ok && info.Format == FormatUint {
		switch info.Size {
		case 2:
			binary.LittleEndian.PutUint16(out[:], uint16(n))
			return out
		case 4:
			binary.LittleEndian.PutUint32(out[:], uint32(n))
			return out
		case 8:
			binary.LittleEndian.PutUint64(out[:], uint64(n))
			return out
		}
	}

	rawBytes(out[:], v)
	return out
}

func asFloat(v Value) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

func asSigned(v Value) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func rawBytes(dst []byte, v Value) {
	switch x := v.(type) {
	case uint8:
		dst[0] = x
	case int8:
		dst[0] = uint8(x)
	case uint16:
		binary.LittleEndian.PutUint16(dst, x)
	case int16:
		binary.LittleEndian.PutUint16(dst, uint16(x))
	case uint32:
		binary.LittleEndian.PutUint32(dst, x)
	case int32:
		binary.LittleEndian.PutUint32(dst, uint32(x))
	case uint64:
		binary.LittleEndian.PutUint64(dst, x)
	case int64:
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(x))
	case Byte64:
		copy(dst, x[:])
	case Byte128:
		copy(dst, x[:])
	}
}
