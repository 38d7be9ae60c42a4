// Package cli holds small helpers for the command line tools.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar renders a single-line bar for batch jobs.
type ProgressBar struct {
	mu      sync.Mutex
	total   int
	current int
	width   int
	prefix  string
	writer  io.Writer
	started time.Time
}

// NewProgressBar creates a bar writing to w.
func NewProgressBar(w io.Writer, total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, width: 40, prefix: prefix, writer: w, started: time.Now()}
}

// Add advances the bar by n, capped at the total.
func (pb *ProgressBar) Add(n int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current += n
	if pb.current > pb.total {
		pb.current = pb.total
	}
	pb.render()
}

// Current reports the progress so far.
func (pb *ProgressBar) Current() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.current
}

// Finish renders the final state and ends the line.
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.render()
	fmt.Fprintln(pb.writer)
}

func (pb *ProgressBar) render() {
	percent := 1.0
	if pb.total > 0 {
		percent = float64(pb.current) / float64(pb.total)
	}
	filled := int(float64(pb.width) * percent)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", pb.width-filled)
	fmt.Fprintf(pb.writer, "\r%s [%s] %d/%d %.1f%% %s", pb.prefix, bar, pb.current, pb.total,
		percent*100, time.Since(pb.started).Round(time.Second))
}
