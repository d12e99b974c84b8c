package syncmanager

import "github.com/beatwave/dashsync/models"

// metricsState accumulates raw counters; snapshots derive the averages.
type metricsState struct {
	totalSyncs      int64
	failedSyncs     int64
	errorCount      int64
	reconnectCount  int64
	inconsistencies int64
	latencySumMs    float64
	latencyCount    int64
}

func (s *metricsState) recordSuccess(latencyMs float64) {
	s.totalSyncs++
	s.latencySumMs += latencyMs
	s.latencyCount++
}

func (s *metricsState) recordFailure() {
	s.totalSyncs++
	s.failedSyncs++
	s.errorCount++
}

// snapshot derives the exported view. A manager that has never synced
// reports a 100% success rate, not zero.
func (s *metricsState) snapshot() models.SyncMetrics {
	m := models.SyncMetrics{
		ErrorCount:          s.errorCount,
		ReconnectCount:      s.reconnectCount,
		TotalSyncs:          s.totalSyncs,
		FailedSyncs:         s.failedSyncs,
		DataInconsistencies: s.inconsistencies,
		SuccessRatePct:      100,
	}
	if s.totalSyncs > 0 {
		m.SuccessRatePct = float64(s.totalSyncs-s.failedSyncs) / float64(s.totalSyncs) * 100
	}
	if s.latencyCount > 0 {
		m.AverageLatencyMs = s.latencySumMs / float64(s.latencyCount)
	}
	return m
}
