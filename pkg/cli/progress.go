package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress of a multi-message replay.
type ProgressReporter interface {
	Start(total int)
	Advance(ok bool)
	Finish() Tally
}

// Tally counts replayed messages by outcome.
type Tally struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SimpleProgress renders a single-line progress bar.
type SimpleProgress struct {
	mu      sync.Mutex
	tally   Tally
	done    int
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr so that stdout stays parseable.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{
		writer: w,
	}
}

// Start resets the reporter for total messages.
func (p *SimpleProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tally = Tally{Total: total}
	p.done = 0
	p.started = time.Now()

	p.render()
}

// Advance records one processed message.
func (p *SimpleProgress) Advance(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if ok {
		p.tally.Succeeded++
	} else {
		p.tally.Failed++
	}
	p.render()
}

// Finish ends the progress line and returns the final tally.
func (p *SimpleProgress) Finish() Tally {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tally.Total > 0 {
		fmt.Fprintln(p.writer)
	}
	return p.tally
}

func (p *SimpleProgress) render() {
	if p.tally.Total == 0 {
		return
	}

	percent := float64(p.done) / float64(p.tally.Total) * 100
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)
	if filled > barWidth {
		filled = barWidth
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.done) / elapsed
	}

	fmt.Fprintf(p.writer, "\rIngest: [%s] %.1f%% (%d/%d, %d failed) %.1f msg/s",
		bar, percent, p.done, p.tally.Total, p.tally.Failed, rate)
}
