// Package gpio models the output side of the oscillator: a group of four
// consecutive lines driven with complementary nibble patterns. On hardware
// this is a register write; on a host the Trace implementation records every
// transition against the engine's virtual cycle clock so the synthesized
// waveform can be measured, rendered or exported.
package gpio

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/valerio/go-dco/dco/bit"
)

// MaxPin is the highest usable line number (RP2040-class parts expose 30
// user GPIOs).
const MaxPin = 29

// Group receives the synthesized waveform. Drive is called once per toggle
// with the new 4-bit lane mask and the engine cycle at which it takes
// effect. Implementations must tolerate being called from the engine
// goroutine only; the engine is the sole writer.
type Group interface {
	Drive(mask uint8, cycle uint64)
}

// Discard is a Group that drops every transition. Useful when only the
// timing behavior of the pipeline is of interest.
type Discard struct{}

func (Discard) Drive(mask uint8, cycle uint64) {}

// Transition is one recorded toggle: the lane mask driven and the virtual
// engine cycle at which it was driven.
type Transition struct {
	Mask  uint8
	Cycle uint64
}

// Trace records transitions for later measurement. It is safe to read while
// the engine is still driving it.
type Trace struct {
	mu          sync.Mutex
	transitions []Transition
	limit       int
}

// NewTrace returns an unbounded Trace.
func NewTrace() *Trace {
	return &Trace{}
}

// NewTraceLimit returns a Trace that keeps only the most recent n
// transitions, for open-ended runs where memory matters more than history.
func NewTraceLimit(n int) *Trace {
	return &Trace{limit: n}
}

// Drive implements Group.
func (t *Trace) Drive(mask uint8, cycle uint64) {
	t.mu.Lock()
	t.transitions = append(t.transitions, Transition{Mask: mask, Cycle: cycle})
	if t.limit > 0 && len(t.transitions) > 2*t.limit {
		tail := t.transitions[len(t.transitions)-t.limit:]
		t.transitions = append(t.transitions[:0], tail...)
	}
	t.mu.Unlock()
}

// Len returns the number of recorded transitions.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.transitions)
}

// Transitions returns a copy of the recorded transitions.
func (t *Trace) Transitions() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}

// HalfPeriods returns the duration in cycles of every completed half-period,
// i.e. the gaps between consecutive transitions.
func (t *Trace) HalfPeriods() []uint64 {
	tr := t.Transitions()
	if len(tr) < 2 {
		return nil
	}
	out := make([]uint64, 0, len(tr)-1)
	for i := 1; i < len(tr); i++ {
		out = append(out, tr[i].Cycle-tr[i-1].Cycle)
	}
	return out
}

// MeasuredMilliHz computes the average output frequency over the whole
// trace, given the engine clock. Integer arithmetic: toggles happen twice
// per output period, so f = clock * halfPeriods / (2 * elapsedCycles).
func (t *Trace) MeasuredMilliHz(clockHz uint32) uint64 {
	tr := t.Transitions()
	if len(tr) < 2 {
		return 0
	}
	elapsed := tr[len(tr)-1].Cycle - tr[0].Cycle
	if elapsed == 0 {
		return 0
	}
	halves := uint64(len(tr) - 1)
	// clockHz*1000 fits in 42 bits, halves is bounded by trace length.
	return uint64(clockHz) * 1000 * halves / (2 * elapsed)
}

// Reset discards all recorded transitions.
func (t *Trace) Reset() {
	t.mu.Lock()
	t.transitions = t.transitions[:0]
	t.mu.Unlock()
}

var _ Group = (*Trace)(nil)
var _ Group = Discard{}

// Errors returned by the claim registry.
var (
	ErrPinRange    = errors.New("gpio: pin group out of range")
	ErrPinConflict = errors.New("gpio: pin group already claimed")
)

// Claim is exclusive ownership of a 4-line pin group. Exactly one running
// engine may hold a claim for a given base at a time.
type Claim struct {
	base     uint
	released bool
}

// Base returns the first line of the claimed group.
func (c *Claim) Base() uint {
	return c.base
}

var (
	claimMu sync.Mutex
	claimed = map[uint]bool{}
)

// ClaimGroup reserves the four consecutive lines starting at base. It fails
// with ErrPinRange if the group does not fit the pin space and with
// ErrPinConflict if any line of the group overlaps an existing claim.
func ClaimGroup(base uint) (*Claim, error) {
	if base+bit.GroupWidth-1 > MaxPin {
		return nil, errors.Wrapf(ErrPinRange, "base %d width %d", base, bit.GroupWidth)
	}

	claimMu.Lock()
	defer claimMu.Unlock()

	for b := range claimed {
		if overlaps(base, b) {
			return nil, errors.Wrapf(ErrPinConflict, "base %d overlaps claim at %d", base, b)
		}
	}
	claimed[base] = true
	return &Claim{base: base}, nil
}

func overlaps(a, b uint) bool {
	if a > b {
		a, b = b, a
	}
	return b-a < bit.GroupWidth
}

// Release gives the group back. Releasing twice is a no-op.
func (c *Claim) Release() {
	claimMu.Lock()
	defer claimMu.Unlock()
	if c.released {
		return
	}
	c.released = true
	delete(claimed, c.base)
}
