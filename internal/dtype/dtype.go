// Package dtype computes the Cyphal compact data-type hash: a 64-bit,
// group-sortable identifier derived from a dotted type name such as
// "uavcan.node.Heartbeat.1.0".
package dtype

import (
	"strconv"
	"strings"

	"github.com/cyphal-go/uavnode/internal/crc32c"
)

// rootSuffix is appended, literally, to the root component before hashing.
const rootSuffix = "cvo0"

// Hash computes the 64-bit datatype hash for name, a dotted
// "root[.subroot].tail.major[.minor]" type name. It returns 0 if name has
// fewer than the three components (root, tail, major) required to compute a
// hash.
func Hash(name string) uint64 {
	parts := strings.Split(name, ".")
	// parts includes the trailing minor-version component; N excludes it.
	n := len(parts) - 1
	if n < 3 {
		return 0
	}
	root := parts[0]
	major := parseMajor(parts[n-1])

	var subroot, tail string
	if n >= 4 {
		subroot = parts[1]
		tail = strings.Join(parts[2:n-1], ".")
	} else {
		tail = strings.Join(parts[1:n-1], ".")
	}
	return Compose(root, subroot, tail, major)
}

func parseMajor(s string) uint8 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint8(v)
}

// Compose builds the 64-bit hash directly from its already-split
// components, for callers (tests, code generators) that have root, subroot,
// tail, and major separately rather than as a single dotted string.
func Compose(root, subroot, tail string, major uint8) uint64 {
	rootHash := uint64(crc32c.Checksum([]byte(root + rootSuffix)))
	subHash := uint64(crc32c.Checksum([]byte(subroot))) & 0xFFF
	tailHash := uint64(crc32c.Checksum([]byte(tail))) & 0xFFF
	return rootHash<<32 | subHash<<20 | tailHash<<8 | uint64(major)
}
