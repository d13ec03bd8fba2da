package traffic

import (
	"sync"
	"time"
)

// Kind classifies a recorded outcome.
type Kind int

const (
	// KindSuccess is a successful remote data-store call.
	KindSuccess Kind = iota
	// KindError is a failed remote call (network error, 5xx, timeout).
	KindError
	// KindDenied is a rate-limit denial on the dashboard API.
	KindDenied
)

type event struct {
	at   time.Time
	kind Kind
}

// maxAge bounds retained history; windows larger than this under-count.
const maxAge = 5 * time.Minute

// Tracker keeps a sliding window of remote-call and rate-limit outcomes.
// Feeds the health handler's error-rate and load reporting.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Record appends one outcome of the given kind.
func (t *Tracker) Record(kind Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, kind: kind})
	t.pruneLocked(now)
}

// Count returns the number of outcomes of kind within the window.
func (t *Tracker) Count(kind Kind, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, e := range t.events {
		if e.kind == kind && !e.at.Before(cutoff) {
			n++
		}
	}
	return n
}

// ErrorRate returns (errors, total) within the window, where total counts
// successes and errors; denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for _, e := range t.events {
		if e.at.Before(cutoff) || e.kind == KindDenied {
			continue
		}
		total++
		if e.kind == KindError {
			errors++
		}
	}
	return errors, total
}

// Reset clears all recorded outcomes. For tests only.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}

var defaultTracker = NewTracker()

// RecordSuccess records a successful remote call on the default tracker.
func RecordSuccess() { defaultTracker.Record(KindSuccess) }

// RecordError records a failed remote call on the default tracker.
func RecordError() { defaultTracker.Record(KindError) }

// RecordDenied records a rate-limit denial (429) on the default tracker.
func RecordDenied() { defaultTracker.Record(KindDenied) }

// ErrorRate returns (errors, total) within the window on the default tracker.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// DenialCount returns the number of denials within the window on the default tracker.
func DenialCount(window time.Duration) int {
	return defaultTracker.Count(KindDenied, window)
}

// Reset clears the default tracker. For tests only.
func Reset() { defaultTracker.Reset() }
