package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress over a batch of cards.
type ProgressReporter interface {
	Start(total int)
	Done(item string)
	Fail(item string, err error)
	Finish() (succeeded, failed int)
}

// SimpleProgress renders a single-line progress bar.
type SimpleProgress struct {
	mu      sync.Mutex
	total   int
	done    int
	failed  int
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a new progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr so card output on stdout stays clean.
func NewProgressReporter(w io.Writer) *SimpleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{writer: w}
}

// Start resets the reporter for total items.
func (p *SimpleProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.done = 0
	p.failed = 0
	p.started = time.Now()
	p.render()
}

// Done records a successful item.
func (p *SimpleProgress) Done(string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.render()
}

// Fail records a failed item and prints the error on its own line.
func (p *SimpleProgress) Fail(item string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.failed++
	fmt.Fprintf(p.writer, "\r\033[K✗ %s: %v\n", item, err)
	p.render()
}

// Finish ends the progress line and returns the tallies.
func (p *SimpleProgress) Finish() (succeeded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total > 0 {
		fmt.Fprintln(p.writer)
	}
	return p.done - p.failed, p.failed
}

func (p *SimpleProgress) render() {
	if p.total == 0 {
		return
	}

	current := min(p.done, p.total)
	percent := float64(current) / float64(p.total) * 100
	barWidth := 30
	filled := barWidth * current / p.total

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(current) / elapsed
	}

	fmt.Fprintf(p.writer, "\rCards: [%s] %.1f%% (%d/%d) %.1f cards/s",
		bar, percent, current, p.total, rate)
}
