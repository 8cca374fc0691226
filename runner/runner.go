// Package runner drives a node.Node's cooperative event loop on a fixed
// wall-clock quantum: a context-cancellable ticker pumping Node.Loop.
package runner

import (
	"context"
	"log"
	"time"

	"github.com/cyphal-go/uavnode/metrics"
	"github.com/cyphal-go/uavnode/node"
)

// DefaultQuantum is the tick interval Run uses when quantum is 0, matching
// the node's default task schedule.
const DefaultQuantum = 10 * time.Millisecond

// Run pumps n.Loop every quantum until ctx is cancelled or reps ticks have
// elapsed (reps == 0 means run forever). nowMS must report a monotonic
// millisecond counter compatible with the uint32 tMS Node.Loop expects.
func Run(ctx context.Context, n *node.Node, quantum time.Duration, reps int, nowMS func() uint32) {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}

	ticker := time.NewTicker(quantum)
	defer ticker.Stop()

	last := nowMS()
	loops := 0
	for ; (reps == 0 || loops < reps) && ctx.Err() == nil; loops++ {
		tickStart := time.Now()
		t := nowMS()
		dt := t - last
		last = t

		n.Loop(t, dt)

		metrics.LoopIntervalHistogram.Observe(time.Since(tickStart).Seconds())

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}

	if loops > 0 {
		log.Printf("runner: %d loop ticks completed", loops)
	}
}
