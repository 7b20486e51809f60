package room

import "time"

// retryPolicy is the pure decision half of the synchronizer's retry loop,
// kept free of sleeping and notification I/O so it can be tested without
// real delays.
type retryPolicy struct {
	maxRetries int
	delay      time.Duration
}

// nextAction decides what to do after a failed attempt. attempt counts
// prior failures: 0 for the first failure. It returns the delay before the
// next try, or retry=false when the bound is exhausted and the failure must
// escalate to a human.
func (p retryPolicy) nextAction(attempt int) (delay time.Duration, retry bool) {
	if attempt >= p.maxRetries {
		return 0, false
	}
	return p.delay, true
}
