package diagtap

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"net"
	"strings"
)

// Handler receives every TransferEvent read off a diagtap socket.
type Handler interface {
	Event(ctx context.Context, e TransferEvent)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, e TransferEvent)

// Event implements Handler.
func (f HandlerFunc) Event(ctx context.Context, e TransferEvent) { f(ctx, e) }

// MustRun reads from socket until ctx is cancelled, dispatching each decoded
// TransferEvent to handler. Any connection or decode error is fatal.
func MustRun(ctx context.Context, socket string, handler Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := net.Dial("unix", socket)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	s := bufio.NewScanner(c)
	for s.Scan() {
		var e TransferEvent
		if err := json.Unmarshal(s.Bytes(), &e); err != nil {
			log.Printf("diagtap: bad event line: %v", err)
			continue
		}
		handler.Event(ctx, e)
	}

	err = s.Err()
	if err != nil && strings.Contains(err.Error(), "use of closed network connection") {
		err = nil
	}
	return err
}
