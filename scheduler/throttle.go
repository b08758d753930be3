package scheduler

import (
	"fmt"
	"math"
	"sync"
)

// Throttle bounds the total cost of work admitted in a scope.
//
// Only one pending signal is tracked at a time. While it exists every
// TryAcquire returns it, so a new request can never jump an existing waiter;
// additional waiters queue in the owning scheduler.
type Throttle interface {
	// TryAcquire reserves cost. It returns nil when the reservation was granted,
	// otherwise a channel that is closed once enough capacity was released.
	// A pending caller must call TryAcquire again after the signal.
	TryAcquire(cost int) <-chan struct{}

	// Release returns a previously granted cost.
	Release(cost int)

	// Capacity returns the fixed capacity.
	Capacity() int

	// Available returns the currently unreserved capacity.
	Available() int
}

type throttle struct {
	mu        sync.Mutex
	capacity  int
	available int
	waiting   int // cost of the request behind backoff
	backoff   chan struct{}
}

// NewThrottle returns a throttle with the given capacity.
//
// Costs larger than the capacity are clamped to it so that oversized tasks are
// admitted alone instead of starving forever. NewThrottle panics if capacity
// is not positive.
func NewThrottle(capacity int) Throttle {
	if capacity <= 0 {
		panic(fmt.Sprintf("scheduler: throttle capacity must be positive, got %d", capacity))
	}
	return &throttle{
		capacity:  capacity,
		available: capacity,
	}
}

func (t *throttle) clamp(cost int) int {
	if cost < 0 {
		return 0
	}
	return min(cost, t.capacity)
}

func (t *throttle) TryAcquire(cost int) <-chan struct{} {
	cost = t.clamp(cost)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.backoff != nil {
		return t.backoff
	}
	if cost <= t.available {
		t.available -= cost
		return nil
	}
	t.waiting = cost
	t.backoff = make(chan struct{})
	return t.backoff
}

func (t *throttle) Release(cost int) {
	cost = t.clamp(cost)

	t.mu.Lock()
	t.available += cost
	if t.available > t.capacity {
		t.mu.Unlock()
		panic("scheduler: throttle released more than it granted")
	}
	var wake chan struct{}
	if t.backoff != nil && t.available >= t.waiting {
		wake = t.backoff
		t.backoff = nil
		t.waiting = 0
	}
	t.mu.Unlock()

	if wake != nil {
		close(wake)
	}
}

func (t *throttle) Capacity() int {
	return t.capacity
}

func (t *throttle) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.available
}

type unlimited struct{}

// Unlimited returns a throttle that grants every request.
func Unlimited() Throttle { return unlimited{} }

func (unlimited) TryAcquire(int) <-chan struct{} { return nil }
func (unlimited) Release(int)                    {}
func (unlimited) Capacity() int                  { return math.MaxInt }
func (unlimited) Available() int                 { return math.MaxInt }
