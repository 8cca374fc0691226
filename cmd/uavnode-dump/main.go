// uavnode-dump converts a recorder log file (a zstd-compressed sequence of
// recorded transfers) to CSV.
package main

import (
	"encoding/hex"
	"flag"
	"log"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/rtx"

	"github.com/cyphal-go/uavnode/recorder"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	input  = flag.String("input", "", "Path to a .zst recorder log file")
	output = flag.String("output", "", "Path to write CSV to (default: stdout)")
)

// csvRow is the flattened, gocsv-tagged shape of one recorder.Event.
type csvRow struct {
	Direction    string `csv:"direction"`
	TimestampUS  uint64 `csv:"timestamp_us"`
	Priority     uint8  `csv:"priority"`
	Kind         string `csv:"kind"`
	Port         uint16 `csv:"port"`
	DatatypeHash string `csv:"datatype_hash"`
	LocalNodeID  uint16 `csv:"local_node_id"`
	RemoteNodeID uint16 `csv:"remote_node_id"`
	TransferID   uint64 `csv:"transfer_id"`
	PayloadHex   string `csv:"payload_hex"`
}

func toRows(events []recorder.Event) []*csvRow {
	rows := make([]*csvRow, len(events))
	for i, e := range events {
		dir := "tx"
		if e.Direction == recorder.Inbound {
			dir = "rx"
		}
		rows[i] = &csvRow{
			Direction:    dir,
			TimestampUS:  e.TimestampUS,
			Priority:     uint8(e.Priority),
			Kind:         e.Kind.String(),
			Port:         uint16(e.Port),
			DatatypeHash: hex.EncodeToString(uint64ToBytes(e.DatatypeHash)),
			LocalNodeID:  uint16(e.LocalNodeID),
			RemoteNodeID: uint16(e.RemoteNodeID),
			TransferID:   uint64(e.TransferID),
			PayloadHex:   hex.EncodeToString(e.Payload),
		}
	}
	return rows
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * (7 - i)))
	}
	return b
}

func main() {
	flag.Parse()
	if *input == "" {
		log.Fatal("-input is required")
	}

	events, err := recorder.ReadFile(*input)
	rtx.Must(err, "Could not read recorder log %q", *input)

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		rtx.Must(err, "Could not create output file %q", *output)
		defer f.Close()
		out = f
	}

	rtx.Must(gocsv.Marshal(toRows(events), out), "Could not marshal CSV")
}
