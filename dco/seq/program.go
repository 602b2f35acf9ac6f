package seq

// The engine executes a fixed micro-program, one iteration per output
// period. Each step has a documented cost in engine cycles; the timing
// contract of the whole oscillator is derived from these constants, so they
// must match the instruction cost of whatever substrate runs the loop (a
// programmable I/O sequencer, or a pinned core with preemption disabled).
//
// Per period, with c the fetched half-period count:
//
//	fetch      next count from the FIFO   (overlapped with slack)
//	delay      c cycles                   (count-proportional)
//	toggle     drive complement pattern   ToggleCycles
//	slack      reserved headroom          SlackCycles
//	delay      c cycles
//	toggle     drive original pattern     ToggleCycles
//	slack      reserved headroom          SlackCycles
//
// Total: 2*c + PeriodOverheadCycles. The slack cycle per toggle is a
// deliberate trade: it buys the scheduler time to compute the next count
// before the FIFO runs dry at the highest output frequencies.
const (
	// ToggleCycles is the cost of driving the complement pattern onto the
	// pin group.
	ToggleCycles = 1

	// SlackCycles is the extra fixed-duration cycle run after each toggle,
	// reserved for the producer side of the pipeline.
	SlackCycles = 1

	// HalfOverheadCycles is the fixed per-half-period cost on top of the
	// count-proportional delay.
	HalfOverheadCycles = ToggleCycles + SlackCycles

	// PeriodOverheadCycles is the fixed cost of one full output period.
	PeriodOverheadCycles = 2 * HalfOverheadCycles

	// MinHalfPeriodCount is the smallest count the delay loop can execute.
	// It bounds the maximum output frequency at
	// clock / (2*(MinHalfPeriodCount+HalfOverheadCycles)).
	MinHalfPeriodCount = 1
)

// Complementary nibble patterns driven onto the 4-line group. Adjacent
// lines carry opposite phases, which lets external RF hardware pick either
// polarity (or both, for a differential feed).
const (
	PatternA = uint8(0b0101)
	PatternB = uint8(0b1010)
)
