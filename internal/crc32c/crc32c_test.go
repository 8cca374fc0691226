package crc32c_test

import (
	"testing"

	"github.com/cyphal-go/uavnode/internal/crc32c"
)

func TestChecksumReferenceVector(t *testing.T) {
	got := crc32c.Checksum([]byte("123456789"))
	want := uint32(0xE3069283)
	if got != want {
		t.Errorf("Checksum(\"123456789\") = 0x%08X, want 0x%08X", got, want)
	}
}

func TestIncrementalMatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	want := crc32c.Checksum(data)

	h := crc32c.New()
	h.Write(data[:10])
	h.Write(data[10:])
	if got := h.Sum32(); got != want {
		t.Errorf("incremental Sum32() = 0x%08X, want 0x%08X", got, want)
	}
}
