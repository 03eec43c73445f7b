// Package progress implements search progress reporters: structured log
// lines and a terminal progress bar.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"

	"github.com/signalsfoundry/trajectory-segmenter/internal/config"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
)

// New returns the reporter for mode. A bar is only drawn when out is a
// terminal; otherwise the bar mode falls back to log lines.
func New(mode string, log logging.Logger, out *os.File) solver.Reporter {
	switch strings.ToLower(mode) {
	case config.ProgressLog:
		return NewLogReporter(log)
	case config.ProgressBar:
		if out != nil && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())) {
			return NewBarReporter(out)
		}
		return NewLogReporter(log)
	default:
		return solver.NopReporter{}
	}
}

// LogReporter writes one line when a search starts, at every tenth of
// progress and when it ends, with the elapsed time.
type LogReporter struct {
	log logging.Logger
	now func() time.Time

	mu    sync.Mutex
	label string
	start time.Time
	next  float64
}

// NewLogReporter returns a reporter logging through log.
func NewLogReporter(log logging.Logger) *LogReporter {
	return &LogReporter{log: logging.OrNoop(log), now: time.Now}
}

func (r *LogReporter) OnSearchStart(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.label, r.start, r.next = label, r.now(), 0.1
	r.log.Debug(context.Background(), "search started", logging.String("search", label))
}

func (r *LogReporter) OnSearchProgress(fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fraction < r.next {
		return
	}
	for r.next <= fraction {
		r.next += 0.1
	}
	r.log.Debug(context.Background(), "search progress",
		logging.String("search", r.label),
		logging.Float("fraction", fraction),
		logging.Duration("elapsed", r.now().Sub(r.start)),
	)
}

func (r *LogReporter) OnSearchEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Info(context.Background(), "search finished",
		logging.String("search", r.label),
		logging.Duration("elapsed", r.now().Sub(r.start)),
	)
}

// BarReporter redraws a single-line progress bar in place.
type BarReporter struct {
	mu    sync.Mutex
	out   io.Writer
	bar   progress.Model
	label string
	drawn float64
}

// NewBarReporter draws onto out, which should be a terminal.
func NewBarReporter(out io.Writer) *BarReporter {
	return &BarReporter{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (r *BarReporter) OnSearchStart(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.label = label
	r.draw(0)
}

func (r *BarReporter) OnSearchProgress(fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fraction-r.drawn < 0.005 {
		return
	}
	r.draw(fraction)
}

func (r *BarReporter) OnSearchEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw(1)
	fmt.Fprintln(r.out)
}

func (r *BarReporter) draw(fraction float64) {
	r.drawn = fraction
	fmt.Fprintf(r.out, "\r%-24s %s", r.label, r.bar.ViewAs(fraction))
}
