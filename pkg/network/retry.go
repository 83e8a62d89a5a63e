package network

import "time"

const (
	retryEvery = 5 * time.Second
	retryCap   = time.Minute
)

// Retry is the flat-then-doubling backoff of reconnect loops. The
// caller owns the waiting, so a shutdown can still interrupt it.
type Retry struct {
	t time.Duration
}

func NewRetry() Retry { return Retry{t: retryEvery} }

// Time returns the current wait.
func (r *Retry) Time() time.Duration { return r.t }

// Fail doubles the next wait up to a cap.
func (r *Retry) Fail() {
	if r.t < retryCap {
		r.t *= 2
	}
}

// Success resets the backoff.
func (r *Retry) Success() { r.t = retryEvery }
