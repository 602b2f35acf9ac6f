// Package synth implements fractional-N synthesis of half-period counts:
// the arithmetic that turns a frequency target into the integer stream the
// waveform engine consumes. The ideal half-period is almost never a whole
// number of cycles, so the generator dithers between the two neighboring
// integers with a phase accumulator, Bresenham-style. The cumulative emitted
// total then tracks the ideal total within one quantum over any run length.
// Everything here is integer arithmetic.
package synth

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/valerio/go-dco/dco/freq"
	"github.com/valerio/go-dco/dco/seq"
)

// Configuration-time range errors. These are returned before any state is
// touched; a running synth never sees an out-of-range word.
var (
	ErrZeroFrequency    = errors.New("synth: target frequency is zero")
	ErrFrequencyTooHigh = errors.New("synth: target above representable maximum for this clock")
	ErrFrequencyTooLow  = errors.New("synth: target below representable minimum for this clock")
)

// fracBits is the width of the fractional part of the ideal half-period.
// One quantum of phase is 1 << fracBits of accumulator.
const fracBits = 32

// Tuning is the precomputed form of a frequency target: the ideal
// half-period count split into integer and Q0.32 fractional parts, with the
// engine's fixed overhead already subtracted.
type Tuning struct {
	Whole uint32 // integer part of the ideal count
	Frac  uint32 // fractional part, in units of 2^-32 counts
}

// Tune converts a target frequency into a Tuning for the given engine
// clock. The ideal half-period is
//
//	H = clock / (2 * target)   [cycles, Q32.32]
//
// and the ideal count is H minus the per-half-period overhead. Targets whose
// ideal count falls below seq.MinHalfPeriodCount or whose integer part
// overflows uint32 are rejected here rather than clipped mid-stream.
func Tune(clockHz uint32, target freq.MilliHz) (Tuning, error) {
	if target == 0 {
		return Tuning{}, ErrZeroFrequency
	}

	// H in Q32.32: (clockHz * 1000 << 32) / (2 * mHz), via a 128-bit
	// intermediate since the shifted numerator overflows 64 bits.
	hi, lo := bits.Mul64(uint64(clockHz)*1000, 1<<fracBits)
	div := 2 * uint64(target)
	if hi >= div {
		// Quotient would overflow 64 bits: the half-period is beyond
		// Q32.32, so its integer part cannot fit uint32 either. This is
		// the sole floor check; any quotient that passes it fits.
		return Tuning{}, errors.Wrapf(ErrFrequencyTooLow, "target %v", target)
	}
	h, _ := bits.Div64(hi, lo, div)

	overhead := uint64(seq.HalfOverheadCycles) << fracBits
	floor := uint64(seq.MinHalfPeriodCount) << fracBits
	if h < overhead+floor {
		return Tuning{}, errors.Wrapf(ErrFrequencyTooHigh, "target %v needs a half-period under %d cycles",
			target, seq.MinHalfPeriodCount+seq.HalfOverheadCycles)
	}

	ideal := h - overhead
	return Tuning{
		Whole: uint32(ideal >> fracBits),
		Frac:  uint32(ideal),
	}, nil
}

// MaxMilliHz returns the highest representable target for a clock: the
// frequency whose ideal half-period equals the engine's minimum.
func MaxMilliHz(clockHz uint32) freq.MilliHz {
	minCycles := uint64(seq.MinHalfPeriodCount + seq.HalfOverheadCycles)
	return freq.MilliHz(uint64(clockHz) * 1000 / (2 * minCycles))
}

// Synth is the generator state: the current tuning word plus the phase
// accumulator carrying the not-yet-emitted fraction of a count. It is owned
// by the scheduler goroutine and must not be shared.
type Synth struct {
	word Tuning
	acc  uint32 // phase accumulator, Q0.32, always in [0, quantum)
}

// New creates a generator with a zeroed phase accumulator.
func New(word Tuning) *Synth {
	return &Synth{word: word}
}

// Next emits the next half-period count. The fractional part of the ideal
// count accumulates; whenever it wraps the quantum, one extra cycle is owed
// and the emitted count carries it. Counts are clipped at the engine
// minimum, which only matters at the very top of the frequency range.
func (s *Synth) Next() uint32 {
	count := s.word.Whole

	acc := s.acc + s.word.Frac
	if acc < s.acc { // wrapped: carry one whole cycle
		count++
	}
	s.acc = acc

	if count < seq.MinHalfPeriodCount {
		count = seq.MinHalfPeriodCount
	}
	return count
}

// Retune swaps the tuning word. The accumulator is deliberately preserved:
// the new frequency takes over at the next quantum with a phase error of at
// most one quantum, which keeps an FSK tone change spectrally narrow.
// Retuning to the identical word is a no-op.
func (s *Synth) Retune(word Tuning) {
	s.word = word
}

// ResetPhase zeroes the accumulator. Only for explicit phase-reset
// requests; never done implicitly on retune.
func (s *Synth) ResetPhase() {
	s.acc = 0
}

// Phase returns the accumulator, for observation in tests and diagnostics.
func (s *Synth) Phase() uint32 {
	return s.acc
}

// Word returns the current tuning word.
func (s *Synth) Word() Tuning {
	return s.word
}
