package wire_test

import (
	"math"
	"testing"

	"github.com/cyphal-go/uavnode/internal/wire"
)

func TestIntegerRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	out := wire.NewOutStream(buf)
	out.PutU8(0x12).PutI8(-1).PutU16(0xBEEF).PutI16(-2).
		PutU32(0xDEADBEEF).PutI32(-3).PutU64(0x0102030405060708).PutI64(-4)

	in := wire.NewInStream(out.Bytes())
	if v := in.U8(); v != 0x12 {
		t.Errorf("U8 = %#x, want 0x12", v)
	}
	if v := in.I8(); v != -1 {
		t.Errorf("I8 = %d, want -1", v)
	}
	if v := in.U16(); v != 0xBEEF {
		t.Errorf("U16 = %#x, want 0xBEEF", v)
	}
	if v := in.I16(); v != -2 {
		t.Errorf("I16 = %d, want -2", v)
	}
	if v := in.U32(); v != 0xDEADBEEF {
		t.Errorf("U32 = %#x, want 0xDEADBEEF", v)
	}
	if v := in.I32(); v != -3 {
		t.Errorf("I32 = %d, want -3", v)
	}
	if v := in.U64(); v != 0x0102030405060708 {
		t.Errorf("U64 = %#x, want 0x0102030405060708", v)
	}
	if v := in.I64(); v != -4 {
		t.Errorf("I64 = %d, want -4", v)
	}
	if in.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", in.Remaining())
	}
}

func TestFloatRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	out := wire.NewOutStream(buf)
	out.PutF32(3.5).PutF64(-123.25)

	in := wire.NewInStream(out.Bytes())
	if v := in.F32(); v != 3.5 {
		t.Errorf("F32 = %v, want 3.5", v)
	}
	if v := in.F64(); v != -123.25 {
		t.Errorf("F64 = %v, want -123.25", v)
	}
}

func TestShortStringRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	out := wire.NewOutStream(buf)
	out.PutShortString([]byte("ESP 8266"))

	in := wire.NewInStream(out.Bytes())
	got := in.ShortString()
	if string(got) != "ESP 8266" {
		t.Errorf("ShortString = %q, want %q", got, "ESP 8266")
	}
}

func TestEncodingNeverWritesPastCapacity(t *testing.T) {
	buf := make([]byte, 2)
	out := wire.NewOutStream(buf)
	out.PutU64(0x0102030405060708)
	if len(out.Bytes()) != 2 {
		t.Fatalf("Bytes() len = %d, want 2 (never grow past size)", len(out.Bytes()))
	}

	buf2 := make([]byte, 3)
	out2 := wire.NewOutStream(buf2)
	out2.PutShortString([]byte("hello"))
	// Length prefix consumes 1 byte, leaving 2 bytes of room for the
	// truncated payload.
	if got := out2.Bytes(); string(got) != "\x05he" {
		t.Fatalf("PutShortString truncated = %q, want %q", got, "\x05he")
	}
}

func TestReadPastEndSetsRemainingZero(t *testing.T) {
	in := wire.NewInStream([]byte{0x01})
	if v := in.U32(); v != 0 {
		t.Errorf("U32 on truncated input = %d, want 0", v)
	}
	if in.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", in.Remaining())
	}
	// Further reads are no-ops that return the zero value.
	if v := in.U8(); v != 0 {
		t.Errorf("U8 after truncation = %d, want 0", v)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	out := wire.NewOutStream(buf)
	out.PutArray(1, [][]byte{{1, 2}, {3, 4}, {5, 6}})

	in := wire.NewInStream(out.Bytes())
	dst := make([][]byte, 4)
	for i := range dst {
		dst[i] = make([]byte, 0, 2)
	}
	n := in.Array(1, 2, dst)
	if n != 3 {
		t.Fatalf("Array copied %d elements, want 3", n)
	}
	want := [][]byte{{1, 2}, {3, 4}, {5, 6}}
	for i, w := range want {
		if string(dst[i]) != string(w) {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], w)
		}
	}
}

func TestArrayTruncatesToCapacity(t *testing.T) {
	buf := make([]byte, 32)
	out := wire.NewOutStream(buf)
	out.PutArray(1, [][]byte{{1}, {2}, {3}, {4}})

	in := wire.NewInStream(out.Bytes())
	dst := make([][]byte, 2)
	for i := range dst {
		dst[i] = make([]byte, 0, 1)
	}
	n := in.Array(1, 1, dst)
	if n != 2 {
		t.Fatalf("Array copied %d elements, want 2 (capacity-bounded)", n)
	}
	if in.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0 (excess elements discarded)", in.Remaining())
	}
}

func TestArrayInsufficientBytesReturnsZero(t *testing.T) {
	// Declares 3 elements of 4 bytes each (12 bytes) but only supplies 6.
	buf := []byte{3, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	in := wire.NewInStream(buf)
	dst := make([][]byte, 4)
	for i := range dst {
		dst[i] = make([]byte, 0, 4)
	}
	n := in.Array(1, 4, dst)
	if n != 0 {
		t.Fatalf("Array with truncated stream copied %d elements, want 0", n)
	}
	if in.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", in.Remaining())
	}
}

func TestHalfToFloatVectors(t *testing.T) {
	cases := []struct {
		name string
		in   uint16
		want float32
	}{
		{"one", 0x3C00, 1.0},
		{"negTwo", 0xC000, -2.0},
		{"posInf", 0x7C00, float32(math.Inf(1))},
		{"posZero", 0x0000, 0.0},
		{"smallestSubnormal", 0x0001, 0x1p-24},
		{"largestSubnormal", 0x03FF, 0x3FFp-24},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := wire.HalfToFloat(c.in)
			if math.IsInf(float64(c.want), 1) {
				if !math.IsInf(float64(got), 1) {
					t.Fatalf("HalfToFloat(%#x) = %v, want +Inf", c.in, got)
				}
				return
			}
			if got != c.want {
				t.Fatalf("HalfToFloat(%#x) = %v, want %v", c.in, got, c.want)
			}
		})
	}

	if got := wire.HalfToFloat(0x8000); got != 0 || math.Signbit(float64(got)) == false {
		t.Fatalf("HalfToFloat(0x8000) = %v, want -0.0", got)
	}
}

func TestFloatToHalfVectors(t *testing.T) {
	if got := wire.FloatToHalf(1.0); got != 0x3C00 {
		t.Errorf("FloatToHalf(1.0) = %#x, want 0x3C00", got)
	}
	if got := wire.FloatToHalf(-2.0); got != 0xC000 {
		t.Errorf("FloatToHalf(-2.0) = %#x, want 0xC000", got)
	}
}

func TestHalfRoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	out := wire.NewOutStream(buf)
	out.PutF16(1.0)

	in := wire.NewInStream(out.Bytes())
	if got := in.F16(); got != 1.0 {
		t.Errorf("F16 round trip = %v, want 1.0", got)
	}
}
