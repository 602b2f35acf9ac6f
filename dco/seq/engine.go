// Package seq implements the waveform engine: an autonomous sequencer that
// turns a stream of half-period counts into cycle-exact toggling of a 4-line
// output group. The engine knows nothing about frequency, only counts.
package seq

import (
	"sync/atomic"
	"time"

	"github.com/valerio/go-dco/dco/fifo"
	"github.com/valerio/go-dco/dco/gpio"
)

// underrunGrace is how long the engine tolerates an empty queue before the
// stall counts as starvation. On hardware the FIFO only empties when the
// scheduler is genuinely too slow; in the host model the two goroutines
// race each other, so momentary emptiness is scheduling jitter, not a
// fault. The virtual clock holds either way.
const underrunGrace = 5 * time.Millisecond

// Engine drains a FIFO of half-period counts and drives the pin group,
// keeping a virtual cycle clock so the emitted waveform is exact regardless
// of host scheduling. Run executes on its own goroutine; all other methods
// are safe to call concurrently.
type Engine struct {
	queue *fifo.FIFO
	pins  gpio.Group

	cycles    atomic.Uint64 // virtual engine clock
	periods   atomic.Uint64 // completed output periods
	underruns atomic.Uint64

	mask   uint8  // current pattern, engine goroutine only
	paceHz uint32 // when nonzero, throttle the virtual clock to wall time
}

// New creates an engine reading from queue and driving pins. The group
// starts out holding PatternA.
func New(queue *fifo.FIFO, pins gpio.Group) *Engine {
	return &Engine{
		queue: queue,
		pins:  pins,
		mask:  PatternA,
	}
}

// Pace throttles the virtual clock to wall time as if the engine ran at
// clockHz. Must be set before Run. Zero (the default) runs unthrottled,
// which is what deterministic headless runs want.
func (e *Engine) Pace(clockHz uint32) {
	e.paceHz = clockHz
}

// Run executes the micro-program until stop closes or maxPeriods periods
// have completed (maxPeriods 0 means run forever). Stop is only observed at
// the fetch boundary: a period in flight always completes, so teardown never
// truncates a half-period.
func (e *Engine) Run(stop <-chan struct{}, maxPeriods uint64) {
	start := time.Now()
	e.pins.Drive(e.mask, e.cycles.Load())

	for {
		if maxPeriods > 0 && e.periods.Load() >= maxPeriods {
			return
		}

		count, ok := e.queue.TryPop()
		if !ok {
			count, ok = e.popStarved(stop)
			if !ok {
				return
			}
		}

		e.halfPeriod(count)
		e.halfPeriod(count)
		e.periods.Add(1)

		if e.paceHz > 0 {
			e.throttle(start)
		}
	}
}

// popStarved blocks for the next count and decides whether the wait was a
// real underrun. On hardware this is where the current level would be held,
// stretching the half-period with no error signal beyond the fault counter.
// Emptiness that clears within the grace window is jitter between the two
// goroutines and not counted; a wait cut short by stop is a clean teardown,
// not a fault.
func (e *Engine) popStarved(stop <-chan struct{}) (uint32, bool) {
	start := time.Now()
	count, ok := e.queue.Pop(stop)
	if ok && time.Since(start) >= underrunGrace {
		e.underruns.Add(1)
	}
	return count, ok
}

// throttle sleeps off any lead the virtual clock has built over wall time.
// Sub-millisecond leads are left alone; sleep granularity would dominate.
func (e *Engine) throttle(start time.Time) {
	cycles := e.cycles.Load()
	secs := cycles / uint64(e.paceHz)
	rem := cycles % uint64(e.paceHz)
	target := time.Duration(secs)*time.Second +
		time.Duration(rem*uint64(time.Second)/uint64(e.paceHz))

	if ahead := target - time.Since(start); ahead > time.Millisecond {
		time.Sleep(ahead)
	}
}

// halfPeriod burns the delay loop plus the fixed overhead, then toggles.
func (e *Engine) halfPeriod(count uint32) {
	e.cycles.Add(uint64(count) + HalfOverheadCycles)
	e.mask = PatternA ^ PatternB ^ e.mask
	e.pins.Drive(e.mask, e.cycles.Load())
}

// Cycles returns the engine's virtual clock.
func (e *Engine) Cycles() uint64 {
	return e.cycles.Load()
}

// Periods returns the number of completed output periods.
func (e *Engine) Periods() uint64 {
	return e.periods.Load()
}

// Underruns returns how many times a fetch found the queue empty and it
// stayed empty beyond the grace window: real starvation, not host jitter.
func (e *Engine) Underruns() uint64 {
	return e.underruns.Load()
}
