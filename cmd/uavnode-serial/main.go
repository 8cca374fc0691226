// uavnode-serial runs a Cyphal/UAVCAN node over a byte-stuffed serial
// link, with Prometheus metrics, an optional rotating transfer recorder,
// and an optional diagtap introspection socket.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	goserial "github.com/daedaluz/goserial"

	"github.com/cyphal-go/uavnode/apps"
	"github.com/cyphal-go/uavnode/diagtap"
	"github.com/cyphal-go/uavnode/node"
	"github.com/cyphal-go/uavnode/recorder"
	"github.com/cyphal-go/uavnode/runner"
	"github.com/cyphal-go/uavnode/tasks"
	"github.com/cyphal-go/uavnode/transport/serial"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	devicePath = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baudRate   = flag.Int("baud", 115200, "Serial baud rate")
	localID    = flag.Uint("node-id", 0, "This node's local node id")
	promPort   = flag.String("prom", ":9090", "Prometheus metrics export address and port")
	outputDir  = flag.String("output", "", "Directory for the rotating recorder log; empty disables recording")
	diagSocket = flag.String("diag-socket", "", "Path for the diagtap introspection socket; empty disables it")

	ctx, cancel = context.WithCancel(context.Background())
)

var startTime = time.Now()

func nowUS() uint64 {
	return uint64(time.Since(startTime).Microseconds())
}

func nowMS() uint32 {
	return uint32(time.Since(startTime).Milliseconds())
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)

	port, err := serial.OpenOSPort(*devicePath, goserial.CFlag(*baudRate))
	rtx.Must(err, "Could not open serial device %q", *devicePath)

	n := node.New(node.NodeID(*localID), nowUS, 0)

	tr := serial.New(port, func(b []byte) {
		log.Printf("uavnode-serial: out-of-band byte(s): %x", b)
	})

	var transport node.Transport = tr
	var diagSrv *diagtap.Server
	if *diagSocket != "" {
		diagSrv = diagtap.New(*diagSocket)
		rtx.Must(diagSrv.Listen(), "Could not listen on diagtap socket %q", *diagSocket)
		go diagSrv.Serve(ctx)
		transport = diagtap.Tap(transport, diagSrv)
	}

	var rec *recorder.Recorder
	if *outputDir != "" {
		rec = recorder.New(*outputDir, "uavnode-serial", 10*time.Minute)
		transport = recorder.NewTap(rec, nowUS, transport)
	}

	rtx.Must(n.AddTransport(transport), "Could not add serial transport")

	hb := tasks.NewHeartbeat()
	n.AddTask(hb)

	apps.RegisterServices(n, apps.Identity{
		ProtocolVersion: apps.Version{Major: 1, Minor: 0},
		SoftwareVersion: apps.Version{Major: 0, Minor: 1},
		Name:            "org.cyphal-go.uavnode-serial",
	}, apps.NewStore(), apps.NewCommandHandler(nil))

	runner.Run(ctx, n, 0, 0, nowMS)

	if rec != nil {
		rec.Close()
	}
}
