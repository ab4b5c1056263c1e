package breaker

import "time"

// Policy decides when a closed circuit should open.
//
// A Breaker feeds every outcome to each of its policies and trips as soon as
// any one of them reports a breach. Policies are only ever called with the
// Breaker's lock held and need no synchronization of their own.
type Policy interface {
	// Record registers one call outcome observed at now.
	Record(now time.Time, success bool)

	// Tripped reports whether the policy's threshold is breached at now.
	Tripped(now time.Time) bool

	// Reset clears accumulated state when the circuit closes.
	Reset()
}

// SuccessRatePolicy trips when the success rate over a trailing window drops
// below Threshold, provided at least MinSamples outcomes were observed.
type SuccessRatePolicy struct {
	threshold  float64
	minSamples int
	window     *outcomeWindow
}

// NewSuccessRatePolicy creates a success-rate policy.
//
// Example:
//
//	// trip below 80% success over the last 30s, once 10 calls were seen
//	p := NewSuccessRatePolicy(0.8, 10, 30*time.Second)
func NewSuccessRatePolicy(threshold float64, minSamples int, window time.Duration) *SuccessRatePolicy {
	if minSamples < 1 {
		minSamples = 1
	}
	return &SuccessRatePolicy{
		threshold:  threshold,
		minSamples: minSamples,
		window:     newOutcomeWindow(window, 10),
	}
}

// Record implements Policy.
func (p *SuccessRatePolicy) Record(now time.Time, success bool) {
	p.window.record(now, success)
}

// Tripped implements Policy.
func (p *SuccessRatePolicy) Tripped(now time.Time) bool {
	successes, failures := p.window.totals(now)
	total := successes + failures
	if total < p.minSamples {
		return false
	}
	return float64(successes)/float64(total) < p.threshold
}

// Reset implements Policy.
func (p *SuccessRatePolicy) Reset() {
	p.window.reset()
}

// ConsecutiveFailuresPolicy trips after Limit failures in a row.
type ConsecutiveFailuresPolicy struct {
	limit    int
	failures int
}

// NewConsecutiveFailuresPolicy creates a policy that trips after limit
// consecutive failures. Values below 1 are treated as 1.
func NewConsecutiveFailuresPolicy(limit int) *ConsecutiveFailuresPolicy {
	if limit < 1 {
		limit = 1
	}
	return &ConsecutiveFailuresPolicy{limit: limit}
}

// Record implements Policy.
func (p *ConsecutiveFailuresPolicy) Record(_ time.Time, success bool) {
	if success {
		p.failures = 0
		return
	}
	p.failures++
}

// Tripped implements Policy.
func (p *ConsecutiveFailuresPolicy) Tripped(time.Time) bool {
	return p.failures >= p.limit
}

// Reset implements Policy.
func (p *ConsecutiveFailuresPolicy) Reset() {
	p.failures = 0
}
