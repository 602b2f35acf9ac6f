// Package fifo is the bounded hand-off queue between the cycle scheduler
// (single producer) and the waveform engine (single consumer). It mirrors
// the hardware transmit FIFO the engine would drain on a real part: fixed
// capacity, and full/empty are the only coordination signals. Producer
// suspension on full is what throttles the scheduler to the engine's
// consumption rate; consumer starvation on empty is the underrun fault.
package fifo

// DefaultDepth matches the joined transmit FIFO depth of the reference
// sequencer hardware.
const DefaultDepth = 8

// FIFO is a bounded single-producer/single-consumer queue of half-period
// counts. The SPSC discipline is a contract, not enforced: exactly one
// goroutine may call Push and exactly one may call Pop/TryPop.
type FIFO struct {
	slots chan uint32
}

// New creates a FIFO with the given capacity. Non-positive capacities fall
// back to DefaultDepth.
func New(capacity int) *FIFO {
	if capacity <= 0 {
		capacity = DefaultDepth
	}
	return &FIFO{slots: make(chan uint32, capacity)}
}

// Push enqueues a count, blocking while the queue is full. It returns false
// if stop closes before space becomes available.
func (f *FIFO) Push(count uint32, stop <-chan struct{}) bool {
	select {
	case f.slots <- count:
		return true
	case <-stop:
		return false
	}
}

// TryPop dequeues without blocking. The second return is false when the
// queue is empty; for the engine that is an underrun.
func (f *FIFO) TryPop() (uint32, bool) {
	select {
	case count := <-f.slots:
		return count, true
	default:
		return 0, false
	}
}

// Pop dequeues, blocking while the queue is empty. It returns false if stop
// closes before a count arrives.
func (f *FIFO) Pop(stop <-chan struct{}) (uint32, bool) {
	select {
	case count := <-f.slots:
		return count, true
	case <-stop:
		return 0, false
	}
}

// Len returns the number of queued counts.
func (f *FIFO) Len() int {
	return len(f.slots)
}

// Cap returns the queue capacity.
func (f *FIFO) Cap() int {
	return cap(f.slots)
}

// Drain empties the queue after the producer has stopped, returning how
// many counts were discarded.
func (f *FIFO) Drain() int {
	n := 0
	for {
		select {
		case <-f.slots:
			n++
		default:
			return n
		}
	}
}
