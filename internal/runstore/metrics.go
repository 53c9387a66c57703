package runstore

import "time"

// Metrics aggregates run outcomes for the status endpoint and CLI.
// PostsToday counts posts scheduled by runs that completed today (UTC)
// and resets at midnight.
type Metrics struct {
	TotalRuns       int           `json:"total_runs"`
	SucceededRuns   int           `json:"succeeded_runs"`
	FailedRuns      int           `json:"failed_runs"`
	PostsToday      int           `json:"posts_today"`
	AverageDuration time.Duration `json:"average_duration_ns"`
}

// SuccessRate returns the fraction of finished runs that completed, or 0
// before any run has finished.
func (m Metrics) SuccessRate() float64 {
	finished := m.SucceededRuns + m.FailedRuns
	if finished == 0 {
		return 0
	}
	return float64(m.SucceededRuns) / float64(finished)
}
