package solver

// Reporter receives progress notifications from a search.
type Reporter interface {
	OnSearchStart(label string)
	// OnSearchProgress reports the scanned fraction of the confinement, in [0, 1].
	OnSearchProgress(fraction float64)
	OnSearchEnd()
}

// NopReporter ignores every notification.
type NopReporter struct{}

func (NopReporter) OnSearchStart(string)     {}
func (NopReporter) OnSearchProgress(float64) {}
func (NopReporter) OnSearchEnd()             {}
