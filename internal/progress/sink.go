// Package progress tracks indexing progress with atomic counters and
// renders them to a terminal. Grounded on internal/appstate/indexing_state.go's
// atomic-counter/snapshot pattern, trimmed to the counters this domain's
// pipeline actually reports.
package progress

import (
	"fmt"
	"sync/atomic"
)

// Snapshot is a point-in-time read of a Sink's counters.
type Snapshot struct {
	Total   int64
	Scanned int64
	Indexed int64
	Skipped int64
	Deleted int64
	Errors  int64
}

// Sink accumulates pipeline counters from concurrent OCR workers. Build
// one with NewSink: on a zero-value Sink the counters work, but Warnf,
// Note and Logs block forever because the log lock is set up by NewSink.
// All methods are nil-receiver safe so pipelines can be run with
// sink == nil for tests that don't care about progress.
type Sink struct {
	total   atomic.Int64
	scanned atomic.Int64
	indexed atomic.Int64
	skipped atomic.Int64
	deleted atomic.Int64
	errors  atomic.Int64

	mu  chan struct{} // 1-buffered mutex guarding log
	log []string
}

// NewSink returns a ready-to-use Sink.
func NewSink() *Sink {
	s := &Sink{mu: make(chan struct{}, 1)}
	s.mu <- struct{}{}
	return s
}

func (s *Sink) SetTotal(n int64) {
	if s == nil {
		return
	}
	s.total.Store(n)
}

func (s *Sink) AddScanned(n int64) {
	if s == nil {
		return
	}
	s.scanned.Add(n)
}

func (s *Sink) AddIndexed(n int64) {
	if s == nil {
		return
	}
	s.indexed.Add(n)
}

func (s *Sink) AddSkipped(n int64) {
	if s == nil {
		return
	}
	s.skipped.Add(n)
}

func (s *Sink) AddDeleted(n int64) {
	if s == nil {
		return
	}
	s.deleted.Add(n)
}

func (s *Sink) AddErrors(n int64) {
	if s == nil {
		return
	}
	s.errors.Add(n)
}

// Warnf implements walker.DiagnosticSink by recording a formatted
// warning and bumping the error counter.
func (s *Sink) Warnf(format string, args ...any) {
	if s == nil {
		return
	}
	s.errors.Add(1)
	s.appendLog(fmt.Sprintf(format, args...))
}

// Note implements store.NoteSink, surfacing store-level notices (schema
// creation, etc.) through the same log buffer as walker warnings.
func (s *Sink) Note(msg string) {
	if s == nil {
		return
	}
	s.appendLog(msg)
}

func (s *Sink) appendLog(line string) {
	<-s.mu
	s.log = append(s.log, line)
	s.mu <- struct{}{}
}

// Logs drains and returns every log line recorded so far.
func (s *Sink) Logs() []string {
	if s == nil {
		return nil
	}
	<-s.mu
	out := s.log
	s.log = nil
	s.mu <- struct{}{}
	return out
}

// Snapshot reads every counter at once.
func (s *Sink) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		Total:   s.total.Load(),
		Scanned: s.scanned.Load(),
		Indexed: s.indexed.Load(),
		Skipped: s.skipped.Load(),
		Deleted: s.deleted.Load(),
		Errors:  s.errors.Load(),
	}
}
