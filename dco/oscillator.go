// Package dco is a digitally controlled oscillator: it synthesizes a square
// wave at a commanded frequency, with millihertz resolution, on a group of
// four output lines, without a DAC and without floating point. A
// fractional-N scheduler streams half-period counts through a bounded FIFO
// into a cycle-exact waveform engine; this package owns both and exposes the
// control surface the outer transmitter calls once per modulation symbol.
package dco

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/valerio/go-dco/dco/fifo"
	"github.com/valerio/go-dco/dco/freq"
	"github.com/valerio/go-dco/dco/gpio"
	"github.com/valerio/go-dco/dco/seq"
	"github.com/valerio/go-dco/dco/synth"
)

// State is the oscillator lifecycle state.
type State int

const (
	Stopped State = iota
	Initializing
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	}
	return "unknown"
}

// Lifecycle misuse errors.
var (
	ErrAlreadyRunning = errors.New("dco: oscillator already running")
	ErrNotRunning     = errors.New("dco: oscillator not running")
	ErrZeroClock      = errors.New("dco: clock frequency is zero")
)

// Config describes the execution substrate for one oscillator.
type Config struct {
	// ClockHz is the engine clock in hertz.
	ClockHz uint32

	// PinBase is the first line of the 4-line output group.
	PinBase uint

	// Pins receives the waveform. Defaults to gpio.Discard; pass a
	// *gpio.Trace to observe it.
	Pins gpio.Group

	// FIFODepth overrides the hand-off queue capacity. Zero means
	// fifo.DefaultDepth.
	FIFODepth int

	// MaxPeriods stops the engine after this many output periods. Zero
	// means run until Stop. Used for headless, deterministic runs.
	MaxPeriods uint64

	// RealTime throttles the engine's virtual clock to wall time, as if it
	// really ran at ClockHz. Interactive use only; leave false for
	// deterministic runs.
	RealTime bool
}

// Oscillator is the public frequency controller. All methods are safe for
// concurrent use; the synthesis pipeline itself runs on two private
// goroutines (scheduler producer, engine consumer).
type Oscillator struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	target freq.MilliHz

	claim      *gpio.Claim
	queue      *fifo.FIFO
	engine     *seq.Engine
	retune     chan synth.Tuning
	stop       chan struct{}
	engineDone chan struct{}
	wg         sync.WaitGroup
}

// New creates a stopped oscillator for the given substrate.
func New(cfg Config) *Oscillator {
	if cfg.Pins == nil {
		cfg.Pins = gpio.Discard{}
	}
	return &Oscillator{cfg: cfg}
}

// Start claims the pin group, validates the target against the clock and
// brings up the pipeline. On any configuration error the oscillator falls
// back to Stopped with nothing mutated and nothing claimed.
func (o *Oscillator) Start(target freq.MilliHz) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != Stopped {
		return ErrAlreadyRunning
	}
	o.state = Initializing

	if o.cfg.ClockHz == 0 {
		o.state = Stopped
		return ErrZeroClock
	}

	word, err := synth.Tune(o.cfg.ClockHz, target)
	if err != nil {
		o.state = Stopped
		return errors.Wrap(err, "dco: start")
	}

	claim, err := gpio.ClaimGroup(o.cfg.PinBase)
	if err != nil {
		o.state = Stopped
		return errors.Wrap(err, "dco: start")
	}

	o.claim = claim
	o.target = target
	o.queue = fifo.New(o.cfg.FIFODepth)
	o.engine = seq.New(o.queue, o.cfg.Pins)
	if o.cfg.RealTime {
		o.engine.Pace(o.cfg.ClockHz)
	}
	o.retune = make(chan synth.Tuning, 1)
	o.stop = make(chan struct{})
	o.engineDone = make(chan struct{})

	// Prime the queue to capacity before the engine starts, the same way
	// firmware fills the hardware FIFO before enabling the sequencer.
	s := synth.New(word)
	for i := 0; i < o.queue.Cap(); i++ {
		o.queue.Push(s.Next(), o.stop)
	}

	o.wg.Add(2)
	go o.schedule(s)
	go func() {
		defer o.wg.Done()
		defer close(o.engineDone)
		o.engine.Run(o.stop, o.cfg.MaxPeriods)
	}()

	o.state = Running
	slog.Info("oscillator started",
		"target", target, "clock_hz", o.cfg.ClockHz, "pin_base", o.cfg.PinBase)
	return nil
}

// schedule is the producer hot path: one retune poll and one count per
// quantum, then a blocking push that throttles to engine consumption. No
// other blocking calls live here. The synth is owned by this goroutine from
// the moment it starts.
func (o *Oscillator) schedule(s *synth.Synth) {
	defer o.wg.Done()

	for {
		select {
		case w := <-o.retune:
			s.Retune(w)
		default:
		}

		if !o.queue.Push(s.Next(), o.stop) {
			return
		}
	}
}

// SetFrequency changes the target mid-stream. The new tuning takes effect at
// the next scheduling quantum; the phase accumulator is preserved, so the
// change is phase-continuous to within one quantum. Out-of-range targets are
// rejected with no effect on the running tone. Safe to call once per symbol
// boundary at FSK rates.
func (o *Oscillator) SetFrequency(target freq.MilliHz) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != Running {
		return ErrNotRunning
	}

	word, err := synth.Tune(o.cfg.ClockHz, target)
	if err != nil {
		return errors.Wrap(err, "dco: set frequency")
	}

	// Replace any retune still in flight; only the latest word matters.
	select {
	case <-o.retune:
	default:
	}
	o.retune <- word

	o.target = target
	slog.Debug("oscillator retuned", "target", target)
	return nil
}

// Stop tears the pipeline down at a safe boundary: the engine finishes the
// period in flight, the scheduler unblocks, the queue is drained and the pin
// claim released. Stopping a stopped oscillator is a no-op.
func (o *Oscillator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != Running {
		return
	}

	close(o.stop)
	o.wg.Wait()

	discarded := o.queue.Drain()
	o.claim.Release()
	o.state = Stopped

	slog.Info("oscillator stopped",
		"periods", o.engine.Periods(), "underruns", o.engine.Underruns(),
		"drained", discarded)
}

// Wait blocks until the engine exits: either Stop was called or a
// MaxPeriods run completed. Callers still call Stop afterwards to release
// resources.
func (o *Oscillator) Wait() {
	o.mu.Lock()
	done := o.engineDone
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns the lifecycle state.
func (o *Oscillator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Target returns the most recently accepted frequency target.
func (o *Oscillator) Target() freq.MilliHz {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

// Underruns exposes the engine's fault counter: how many times the FIFO ran
// dry at a fetch boundary. The oscillator keeps running degraded; this is
// the only upward signal an underrun produces.
func (o *Oscillator) Underruns() uint64 {
	o.mu.Lock()
	engine := o.engine
	o.mu.Unlock()
	if engine == nil {
		return 0
	}
	return engine.Underruns()
}

// Periods returns how many full output periods the engine has completed.
func (o *Oscillator) Periods() uint64 {
	o.mu.Lock()
	engine := o.engine
	o.mu.Unlock()
	if engine == nil {
		return 0
	}
	return engine.Periods()
}
