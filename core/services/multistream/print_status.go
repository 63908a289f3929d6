package multistream

import (
	"time"

	"github.com/nodefleet/multistream/core/logger"
	"github.com/nodefleet/multistream/core/services/upstream"
)

// printStatus logs one line per upstream (id, status, height, lag)
// plus the aggregate status.
func (m *Multistream) printStatus() {
	agg := m.Status()
	snap := m.Upstreams()

	logger.Infow("Multistream: status",
		"chain", m.chain.ChainCode, "status", agg.String(), "upstreams", len(snap))

	counts := map[upstream.Availability]int{}
	for _, u := range snap {
		height, err := u.CurrentHeight()
		heightField := interface{}("unknown")
		if err == nil {
			heightField = height
		}
		logger.Infow("Multistream: upstream status",
			"chain", m.chain.ChainCode,
			"upstream", u.ID(),
			"status", u.Status().String(),
			"height", heightField,
			"lag", u.Lag(),
		)
		m.metrics.SetStatus(m.chain, u.ID(), u.Status())
		m.metrics.SetLag(m.chain, u.ID(), u.Lag())
		counts[u.Status()]++
	}
	m.metrics.SetAvailabilityCounts(m.chain, counts)
}

// startStatusPrintLoop waits for at least one upstream to be added,
// then runs printStatus every printStatusInterval regardless, plus at
// most once every printStatusMinInterval on a distinct status change.
func (m *Multistream) startStatusPrintLoop() {
	defer m.wg.Done()

	select {
	case <-m.firstUpstream.AwaitDependents():
	case <-m.chStop:
		return
	}

	changes, unsubscribe := m.statusStream.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(printStatusInterval)
	defer ticker.Stop()

	var lastPrinted time.Time
	for {
		select {
		case <-ticker.C:
			m.printStatus()
			lastPrinted = time.Now()
		case _, ok := <-changes:
			if !ok {
				return
			}
			if time.Since(lastPrinted) >= printStatusMinInterval {
				m.printStatus()
				lastPrinted = time.Now()
			}
		case <-m.chStop:
			return
		}
	}
}
