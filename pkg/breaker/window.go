package breaker

import "time"

// outcomeWindow counts successes and failures over a rolling time period.
//
// Outcomes are grouped into fixed-size time buckets held in a circular
// buffer. Buckets older than the window are pruned before every read, so a
// burst of failures ages out instead of resetting all at once.
//
// outcomeWindow is not safe for concurrent use; the Breaker's mutex guards it.
type outcomeWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []outcomeBucket
	head       int
}

type outcomeBucket struct {
	timestamp time.Time
	successes int
	failures  int
}

// newOutcomeWindow creates a window split into the given number of buckets.
//
// Example:
//
//	// 30s window with 3s buckets
//	w := newOutcomeWindow(30*time.Second, 10)
func newOutcomeWindow(window time.Duration, numBuckets int) *outcomeWindow {
	if numBuckets <= 0 {
		numBuckets = 1
	}
	bucketSize := window / time.Duration(numBuckets)
	if bucketSize <= 0 {
		bucketSize = time.Millisecond
	}
	return &outcomeWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]outcomeBucket, numBuckets),
	}
}

func (w *outcomeWindow) record(now time.Time, success bool) {
	w.prune(now)
	b := w.bucketFor(now)
	if success {
		b.successes++
	} else {
		b.failures++
	}
}

// totals returns the success and failure counts inside the window.
func (w *outcomeWindow) totals(now time.Time) (successes, failures int) {
	w.prune(now)
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() {
			successes += w.buckets[i].successes
			failures += w.buckets[i].failures
		}
	}
	return successes, failures
}

func (w *outcomeWindow) reset() {
	for i := range w.buckets {
		w.buckets[i] = outcomeBucket{}
	}
	w.head = 0
}

func (w *outcomeWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() && !w.buckets[i].timestamp.After(cutoff) {
			w.buckets[i] = outcomeBucket{}
		}
	}
}

// bucketFor returns the bucket covering now, reusing an empty or the oldest
// slot when no bucket exists yet.
func (w *outcomeWindow) bucketFor(now time.Time) *outcomeBucket {
	bucketTime := now.Truncate(w.bucketSize)

	if w.buckets[w.head].timestamp.Equal(bucketTime) {
		return &w.buckets[w.head]
	}

	target := -1
	for i := range w.buckets {
		if w.buckets[i].timestamp.Equal(bucketTime) {
			return &w.buckets[i]
		}
		if target == -1 && w.buckets[i].timestamp.IsZero() {
			target = i
		}
	}

	if target == -1 {
		target = 0
		for i := 1; i < len(w.buckets); i++ {
			if w.buckets[i].timestamp.Before(w.buckets[target].timestamp) {
				target = i
			}
		}
	}

	w.buckets[target] = outcomeBucket{timestamp: bucketTime}
	w.head = target
	return &w.buckets[target]
}
