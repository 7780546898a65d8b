// Package timeline is a pass-through stopwatch for tagging named pipeline
// stages with their elapsed duration. Recording never gates control flow; a
// nil Recorder runs stages untouched.
package timeline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Entry is one recorded stage: its name and how long it ran.
type Entry struct {
	Stage   string
	Elapsed time.Duration
}

// Recorder accumulates stage timings in call order. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	clock clock.Clock

	mu      sync.Mutex
	entries []Entry
}

// New returns a Recorder on the wall clock.
func New() *Recorder {
	return NewWithClock(clock.New())
}

// NewWithClock returns a Recorder on the given clock. Tests use a mock clock.
func NewWithClock(c clock.Clock) *Recorder {
	return &Recorder{clock: c}
}

// Record runs fn and appends an entry with its elapsed duration. The duration
// is captured on every exit path; fn's error passes through untouched.
func (r *Recorder) Record(stage string, fn func() error) error {
	if r == nil {
		return fn()
	}
	start := r.clock.Now()
	defer func() {
		elapsed := r.clock.Now().Sub(start)
		r.mu.Lock()
		r.entries = append(r.entries, Entry{Stage: stage, Elapsed: elapsed})
		r.mu.Unlock()
	}()
	return fn()
}

// Entries returns a copy of the recorded entries in call order.
func (r *Recorder) Entries() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// WriteTo emits a human-readable report of all entries plus their total.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	var written int64
	var total time.Duration
	for _, e := range r.Entries() {
		n, err := fmt.Fprintf(w, "%-12s %v\n", e.Stage, e.Elapsed)
		written += int64(n)
		if err != nil {
			return written, err
		}
		total += e.Elapsed
	}
	n, err := fmt.Fprintf(w, "%-12s %v\n", "total", total)
	written += int64(n)
	return written, err
}
