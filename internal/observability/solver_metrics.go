package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SolverCollector exposes per-strategy solve metrics. It satisfies the
// dispatcher's metrics recorder.
type SolverCollector struct {
	gatherer prometheus.Gatherer

	SolvesTotal     *prometheus.CounterVec
	SolveDuration   *prometheus.HistogramVec
	ResultIntervals *prometheus.HistogramVec
}

// NewSolverCollector registers solver metrics against reg, defaulting to the
// global registry when nil.
func NewSolverCollector(reg prometheus.Registerer) (*SolverCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segmenter_solves_total",
		Help: "Dispatched solves, labeled by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	solves, err := registerCounterVec(reg, solves, "segmenter_solves_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "segmenter_solve_duration_seconds",
		Help:    "Duration of one strategy solve, including nested dispatches.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"strategy"})
	duration, err = registerHistogramVec(reg, duration, "segmenter_solve_duration_seconds")
	if err != nil {
		return nil, err
	}

	intervals := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "segmenter_result_intervals",
		Help:    "Number of intervals in successful solve results.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"strategy"})
	intervals, err = registerHistogramVec(reg, intervals, "segmenter_result_intervals")
	if err != nil {
		return nil, err
	}

	return &SolverCollector{
		gatherer:        gathererFor(reg),
		SolvesTotal:     solves,
		SolveDuration:   duration,
		ResultIntervals: intervals,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SolverCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes the collector's registry over HTTP.
func (c *SolverCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

// ObserveSolve records one finished dispatch. Durations are only recorded
// for solves that ran a strategy, interval counts only for successes.
func (c *SolverCollector) ObserveSolve(strategy, outcome string, elapsed time.Duration, intervals int) {
	if c == nil {
		return
	}
	if c.SolvesTotal != nil {
		c.SolvesTotal.WithLabelValues(strategy, outcome).Inc()
	}
	if elapsed > 0 && c.SolveDuration != nil {
		c.SolveDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	}
	if outcome == "ok" && c.ResultIntervals != nil {
		c.ResultIntervals.WithLabelValues(strategy).Observe(float64(intervals))
	}
}
