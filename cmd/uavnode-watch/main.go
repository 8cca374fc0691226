// uavnode-watch is a minimal reference client for the diagtap socket: it
// tails the JSONL TransferEvent stream a running uavnode-serial or
// uavnode-udp exposes and logs each one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/cyphal-go/uavnode/diagtap"
)

var (
	socket = flag.String("socket", "", "Path to the diagtap unix-domain socket to tail")

	mainCtx, mainCancel = context.WithCancel(context.Background())
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer mainCancel()

	if *socket == "" {
		panic("-socket path is required")
	}

	handler := diagtap.HandlerFunc(func(ctx context.Context, e diagtap.TransferEvent) {
		log.Printf("%s port=%d remote=%d transfer=%d bytes=%d kind=%s",
			e.Direction, e.Port, e.RemoteNodeID, e.TransferID, e.PayloadLen, e.Kind)
	})

	go func() {
		rtx.Must(diagtap.MustRun(mainCtx, *socket, handler), "diagtap client failed")
		mainCancel()
	}()

	<-mainCtx.Done()
	fmt.Println("ok")
}
