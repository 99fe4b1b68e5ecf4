// Package metrics gives the engine a pluggable metrics sink, following the
// teacher's SetMetricsSink/metrics.Sink/metrics.NoopSink shape (see
// pkg/migration/runner.go in the teacher repo): callers inject a Sink,
// everything defaults to a no-op, and the engine never branches on which
// concrete sink is wired in.
package metrics

import "time"

// Sink receives counters and timings emitted while indexing and migrating.
// Implementations are expected to be safe for concurrent use, since the
// scheduler's task goroutines emit to the sink while its dispatch loop
// does too.
type Sink interface {
	// IncrCounter increments a named counter by delta, tagged with
	// free-form key/value pairs (e.g. "type", "file").
	IncrCounter(name string, delta int64, tags map[string]string)
	// ObserveDuration records how long a named operation took.
	ObserveDuration(name string, d time.Duration, tags map[string]string)
	// SetGauge records a point-in-time value, e.g. queue depth.
	SetGauge(name string, value float64, tags map[string]string)
}

// NoopSink discards everything. It is the default sink until a caller
// supplies one via migration.Engine.SetMetricsSink.
type NoopSink struct{}

func (NoopSink) IncrCounter(string, int64, map[string]string)          {}
func (NoopSink) ObserveDuration(string, time.Duration, map[string]string) {}
func (NoopSink) SetGauge(string, float64, map[string]string)           {}

var _ Sink = NoopSink{}
