// Package breaker implements a circuit breaker with pluggable failure
// policies and full-jitter exponential backoff between recovery probes.
//
//	cb := breaker.New(breaker.Config{})
//	if !cb.AllowCall() {
//	    return ErrUnavailable
//	}
//	if err := call(); err != nil {
//	    cb.OnFailure()
//	} else {
//	    cb.OnSuccess()
//	}
package breaker
