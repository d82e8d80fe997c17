package ports

import "time"

// Metrics recibe las mediciones del motor. La implementación real es Prometheus;
// los tests usan NopMetrics.
type Metrics interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	VoteToggled(voted bool)
	PhaseChanged(from, to string)
}

// NopMetrics descarta todas las mediciones.
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, error, time.Duration) {}
func (NopMetrics) VoteToggled(bool)                              {}
func (NopMetrics) PhaseChanged(string, string)                   {}
