// Package ticket provides a fair mutual-exclusion lock.
//
// A [Lock] hands out monotonically increasing tickets and serves them in
// order, so goroutines enter the critical section strictly in the order in
// which they called [Lock.Acquire]. A plain sync.Mutex makes no such promise
// and lets a newly arriving goroutine barge ahead of long-time waiters.
package ticket

import (
	"errors"
	"sync"
)

// ErrNotHeld is returned by Release when no acquirer is outstanding.
var ErrNotHeld = errors.New("ticket: release of lock with no outstanding acquirer")

// Lock is a FIFO ticket lock. The zero value is not usable; use New.
type Lock struct {
	mu      sync.Mutex
	queue   *sync.Cond
	next    uint64 // next ticket to hand out
	serving uint64 // ticket currently allowed in the critical section
}

// New returns an unlocked Lock.
func New() *Lock {
	l := &Lock{}
	l.queue = sync.NewCond(&l.mu)
	return l
}

// Acquire blocks until every earlier acquirer has released the lock.
// There is no timeout; waiting is the intended backpressure.
func (l *Lock) Acquire() {
	l.mu.Lock()
	t := l.next
	l.next++
	for t != l.serving {
		l.queue.Wait()
	}
	l.mu.Unlock()
}

// Release ends the current holder's turn and wakes the waiters so the
// holder of the next ticket can proceed. Releasing a lock that nobody
// acquired returns ErrNotHeld and leaves the lock untouched.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.serving == l.next {
		return ErrNotHeld
	}
	l.serving++
	l.queue.Broadcast()
	return nil
}

// Outstanding reports the number of goroutines that hold or wait for the lock.
func (l *Lock) Outstanding() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next - l.serving
}
