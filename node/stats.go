package node

import "log"

// statsLogIntervalMS is how often Loop logs an aggregate traffic summary.
const statsLogIntervalMS = 60000

// portStats tracks when the last summary line went out.
type portStats struct {
	lastLogMS  uint32
	haveLogged bool
}

func newPortStats() *portStats {
	return &portStats{}
}

// maybeLog logs a summary line if statsLogIntervalMS has elapsed since the
// last one.
func (s *portStats) maybeLog(n *Node, tMS uint32) {
	if !s.haveLogged {
		s.lastLogMS = tMS
		s.haveLogged = true
		return
	}
	if tMS-s.lastLogMS < statsLogIntervalMS {
		return
	}
	s.lastLogMS = tMS

	ports := n.reg.all()
	var emitted, received, errored uint64
	for _, p := range ports {
		emitted += p.Emitted
		received += p.Received
		errored += p.Errored
	}
	log.Printf("node stats: %d ports, emitted=%d received=%d errored=%d inflight=%d",
		len(ports), emitted, received, errored, len(n.inflight))
}
