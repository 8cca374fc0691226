package node

import "github.com/cyphal-go/uavnode/metrics"

// sweepTimeouts removes every inflight request whose deadline has arrived
// and fires its callback in deadline order. tMS is the current millisecond
// counter; dtMS is the elapsed time since the previous tick, so
// t1 = tMS - dtMS is where the swept window starts. The counter wraps at
// 2^32 (roughly every 49 days), so when t1 > t2 the swept window is the
// union [t1, 0xFFFFFFFF] then [0, t2], in that order.
func (n *Node) sweepTimeouts(tMS, dtMS uint32) {
	t2 := tMS
	t1 := tMS - dtMS // wraps correctly via uint32 arithmetic
	wrapped := t1 > t2

	entries := n.timeouts.All()
	var expired []int
	var lowDue, highDue []inflightKey
	for i, e := range entries {
		deadline := uint32(e.Key)
		switch {
		case !wrapped:
			if deadline >= t1 && deadline <= t2 {
				expired = append(expired, i)
				lowDue = append(lowDue, e.Value.(inflightKey))
			}
		case deadline >= t1:
			expired = append(expired, i)
			highDue = append(highDue, e.Value.(inflightKey))
		case deadline <= t2:
			expired = append(expired, i)
			lowDue = append(lowDue, e.Value.(inflightKey))
		}
	}

	// Remove from the back so earlier indices stay valid.
	for i := len(expired) - 1; i >= 0; i-- {
		n.timeouts.RemoveAt(expired[i])
	}

	// Deadlines in the high segment of a wrapped window came first in time;
	// within each segment the index is already deadline-sorted.
	for _, ik := range highDue {
		n.fireTimeout(ik)
	}
	for _, ik := range lowDue {
		n.fireTimeout(ik)
	}
}

// fireTimeout removes ik's pending callback, if it is still present, and
// invokes it with the empty-input sentinel: a timed-out request is reported
// to its callback as a nil payload, indistinguishable from a genuinely
// empty response.
func (n *Node) fireTimeout(ik inflightKey) {
	cb, ok := n.inflight[ik]
	if !ok {
		return
	}
	delete(n.inflight, ik)
	metrics.InFlightRequests.Set(float64(len(n.inflight)))
	metrics.RequestTimeouts.Inc()
	cb(nil)
}
