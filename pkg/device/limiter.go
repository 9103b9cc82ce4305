package device

import (
	"context"
)

// Limiter caps the port calls on the wire across every queue sharing it. A request
// takes a slot only once a worker is about to call its port, so requests waiting
// behind a slow device never hold one. The zero Limiter is unbounded.
type Limiter chan struct{}

func NewLimiter(n int) Limiter {
	return make(Limiter, n)
}

func (l Limiter) acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l Limiter) release() {
	if l != nil {
		<-l
	}
}

// InUse returns the number of port calls currently holding a slot.
func (l Limiter) InUse() int {
	return len(l)
}

func (l Limiter) Size() int {
	return cap(l)
}

type QueueOption func(*Queue)

// WithLimiter makes the queue take a slot from l around every port call.
func WithLimiter(l Limiter) QueueOption {
	return func(q *Queue) {
		q.limiter = l
	}
}
