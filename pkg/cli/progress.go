package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations such as saving
// violations and opening workflows for them.
type ProgressReporter interface {
	Start(total int64)
	Increment()
	Finish()
	Error(err error)
}

const progressWidth = 24

// SimpleProgress redraws one status line per item:
//
//	saving violations [=========>              ] 12/30
type SimpleProgress struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	total   int64
	done    int64
	failed  int64
	started time.Time
}

// NewProgressReporter returns a SimpleProgress writing to w, or os.Stderr when
// w is nil.
func NewProgressReporter(w io.Writer, label string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{w: w, label: label}
}

func (p *SimpleProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total, p.done, p.failed = total, 0, 0
	p.started = time.Now()
	p.draw()
}

func (p *SimpleProgress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = min(p.done+1, p.total)
	p.draw()
}

// Finish completes the line with a summary.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total == 0 {
		return
	}
	p.done = p.total
	p.draw()
	elapsed := time.Since(p.started).Round(time.Millisecond)
	if p.failed > 0 {
		fmt.Fprintf(p.w, " done in %s, %d failed\n", elapsed, p.failed)
		return
	}
	fmt.Fprintf(p.w, " done in %s\n", elapsed)
}

// Error prints err on its own line. The item is counted as failed.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
	fmt.Fprintf(p.w, "\n%s: %v\n", p.label, err)
}

func (p *SimpleProgress) draw() {
	if p.total == 0 {
		return
	}
	filled := int(p.done * progressWidth / p.total)
	bar := strings.Repeat("=", filled)
	if filled < progressWidth {
		bar += ">" + strings.Repeat(" ", progressWidth-filled-1)
	}
	fmt.Fprintf(p.w, "\r%s [%s] %d/%d", p.label, bar, p.done, p.total)
}

// NopProgress discards all progress updates.
type NopProgress struct{}

func (NopProgress) Start(int64) {}
func (NopProgress) Increment()  {}
func (NopProgress) Finish()     {}
func (NopProgress) Error(error) {}
