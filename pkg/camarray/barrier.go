package camarray

import "sync"

// Barrier is a reusable N-party rendezvous point: every call to Wait
// blocks until exactly N parties have called it, then all N are released
// together. Unlike sync.WaitGroup it can be waited on again after every
// party has passed through, which the camera array core needs for both
// its startup and shutdown rendezvous on the same barrier.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	gen     int
}

// NewBarrier returns a barrier that releases once `parties` goroutines
// are waiting on it.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until `parties` goroutines have called Wait on this
// barrier, then releases all of them.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return
	}

	for gen == b.gen {
		b.cond.Wait()
	}
}
