// Package freq holds the fixed-point frequency representation used
// throughout the oscillator. Frequencies are unsigned millihertz, which
// gives sub-hertz tone spacing (FSK protocols like WSPR space tones ~1.46 Hz
// apart) without any floating point in the synthesis path.
package freq

import (
	"fmt"
	"strings"
)

// MilliHz is a frequency in thousandths of a hertz.
type MilliHz uint64

const milliPerHz = 1000

// maxWholeDigits bounds the integer part Parse accepts. Thirteen digits is
// ten terahertz, far past anything a GPIO clock can divide down, and keeps
// the accumulation below uint64 wraparound.
const maxWholeDigits = 13

// FromHz converts a whole number of hertz.
func FromHz(hz uint64) MilliHz {
	return MilliHz(hz * milliPerHz)
}

// Hz returns the whole-hertz part of the frequency.
func (f MilliHz) Hz() uint64 {
	return uint64(f) / milliPerHz
}

// Milli returns the sub-hertz remainder in millihertz (0..999).
func (f MilliHz) Milli() uint64 {
	return uint64(f) % milliPerHz
}

// String formats the frequency as decimal hertz, e.g. "14097000.000 Hz".
func (f MilliHz) String() string {
	return fmt.Sprintf("%d.%03d Hz", f.Hz(), f.Milli())
}

// Parse reads a decimal hertz value with up to three fractional digits,
// e.g. "14097000", "14097000.5" or "1.465". Anything finer than a
// millihertz is rejected rather than silently rounded.
func Parse(s string) (MilliHz, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("freq: empty frequency")
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("freq: malformed frequency %q", s)
	}
	if len(frac) > 3 {
		return 0, fmt.Errorf("freq: %q is finer than millihertz resolution", s)
	}
	if len(whole) > maxWholeDigits {
		return 0, fmt.Errorf("freq: %q is out of range", s)
	}

	var mhz uint64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("freq: malformed frequency %q", s)
		}
		mhz = mhz*10 + uint64(c-'0')
	}
	mhz *= milliPerHz

	scale := uint64(100)
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("freq: malformed frequency %q", s)
		}
		mhz += uint64(c-'0') * scale
		scale /= 10
	}

	return MilliHz(mhz), nil
}
