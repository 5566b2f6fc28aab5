// Package metrics declares the counters/histograms THE CORE emits. The sink
// itself (Prometheus, statsd, ...) is an external collaborator; this package
// only defines the contract and a no-op default for tests.
package metrics

import "time"

// Metrics is the sink the core reports counters and timings to.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveDuration(name string, labels map[string]string, d time.Duration)
}

// Noop discards everything.
func Noop() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, map[string]string)                  {}
func (noopMetrics) ObserveDuration(string, map[string]string, time.Duration) {}
