package async

import (
	"fmt"
	"sync"
)

// RoundBarrier is a reusable cyclic barrier with a fixed participant count.
//
// The training pool awaits it twice per round: the first arrival releases
// workers to compute (the coordinator has finished dispatching batches), the
// second arrival hands control back to the coordinator (all workers have
// finished computing). Between the second arrival and the next round's first
// arrival the workers are parked inside Await, which is what makes the
// coordinator's reduction window exclusive.
//
// The barrier resets itself after each release; it is never recreated.
type RoundBarrier struct {
	mutex      sync.Mutex
	cond       *sync.Cond
	parties    int
	arrived    int
	generation uint64
}

// NewRoundBarrier creates a barrier for the given number of participants.
// The participant count is fixed for the lifetime of the barrier.
func NewRoundBarrier(parties int) (*RoundBarrier, error) {
	if parties <= 0 {
		return nil, fmt.Errorf("barrier participant count must be positive, got %d", parties)
	}

	b := &RoundBarrier{parties: parties}
	b.cond = sync.NewCond(&b.mutex)
	return b, nil
}

// Parties returns the fixed participant count.
func (b *RoundBarrier) Parties() int {
	return b.parties
}

// Await blocks until all participants have arrived, then releases everyone
// and resets the barrier for the next cycle. It returns the generation that
// just completed; the caller that observes generation g returned has the
// guarantee that every participant's writes before their Await call are
// visible to it.
func (b *RoundBarrier) Await() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	gen := b.generation
	b.arrived++

	if b.arrived == b.parties {
		// Last arrival trips the barrier.
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return gen
	}

	for gen == b.generation {
		b.cond.Wait()
	}
	return gen
}

// Generation returns the number of completed barrier cycles.
func (b *RoundBarrier) Generation() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.generation
}
