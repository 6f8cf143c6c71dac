package engine

import "time"

// retryTracker spaces out close attempts for positions whose sell keeps
// failing. The wait doubles per consecutive failure, capped at ceiling.
type retryTracker struct {
	base, ceiling time.Duration
	state         map[string]retryState
}

type retryState struct {
	failures int
	next     time.Time
}

func newRetryTracker(base, ceiling time.Duration) *retryTracker {
	return &retryTracker{base: base, ceiling: ceiling, state: make(map[string]retryState)}
}

// delay is base * 2^(failures-1), capped at ceiling.
func (r *retryTracker) delay(failures int) time.Duration {
	if failures <= 1 {
		return r.base
	}
	// 2^30 * base is far beyond any sensible cap.
	if failures > 30 {
		return r.ceiling
	}
	d := r.base * time.Duration(1<<(failures-1))
	if d > r.ceiling || d <= 0 {
		return r.ceiling
	}
	return d
}

// ready reports whether a close for id may be attempted at now.
func (r *retryTracker) ready(id string, now time.Time) bool {
	s, ok := r.state[id]
	return !ok || !now.Before(s.next)
}

// failed records a failed close and returns when the next attempt is allowed.
func (r *retryTracker) failed(id string, now time.Time) time.Time {
	s := r.state[id]
	s.failures++
	s.next = now.Add(r.delay(s.failures))
	r.state[id] = s
	return s.next
}

func (r *retryTracker) succeeded(id string) {
	delete(r.state, id)
}

// forget drops ids that are no longer open.
func (r *retryTracker) forget(open map[string]struct{}) {
	for id := range r.state {
		if _, ok := open[id]; !ok {
			delete(r.state, id)
		}
	}
}
