package traffic

import (
	"sync"
	"time"
)

// retention bounds how far back outcomes are kept; health windows must not exceed it.
const retention = 15 * time.Minute

var defaultTracker = NewTracker(time.Now)

// RecordSuccess records a lookup that completed without an upstream failure.
// Not-found results count as successes: the upstream answered.
func RecordSuccess() {
	defaultTracker.RecordSuccess()
}

// RecordError records a lookup that failed upstream.
func RecordError() {
	defaultTracker.RecordError()
}

// ErrorRate returns (errorCount, totalCount) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Degraded reports whether the default tracker's error rate meets threshold.
func Degraded(window time.Duration, threshold float64, minLookups int) bool {
	return defaultTracker.Degraded(window, threshold, minLookups)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker keeps sliding windows of lookup outcome timestamps for the health check.
type Tracker struct {
	mu           sync.Mutex
	now          func() time.Time
	successTimes []time.Time
	errorTimes   []time.Time
}

// NewTracker returns an empty tracker reading time from now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

func (t *Tracker) RecordSuccess() {
	t.record(&t.successTimes)
}

func (t *Tracker) RecordError() {
	t.record(&t.errorTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// ErrorRate returns (errorCount, totalCount) within the window, where totalCount is
// successes plus errors.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errCount := countSince(t.errorTimes, cutoff)
	return errCount, errCount + countSince(t.successTimes, cutoff)
}

// Degraded is true when at least minLookups outcomes fall in the window and the share of
// errors among them is >= threshold. A non-positive threshold disables the check.
func (t *Tracker) Degraded(window time.Duration, threshold float64, minLookups int) bool {
	if threshold <= 0 {
		return false
	}
	errs, total := t.ErrorRate(window)
	if total == 0 || total < minLookups {
		return false
	}
	return float64(errs)/float64(total) >= threshold
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Caller holds t.mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
}
