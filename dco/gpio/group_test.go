package gpio

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceHalfPeriods(t *testing.T) {
	tr := NewTrace()
	tr.Drive(0b0101, 0)
	tr.Drive(0b1010, 5)
	tr.Drive(0b0101, 10)
	tr.Drive(0b1010, 16)

	assert.Equal(t, []uint64{5, 5, 6}, tr.HalfPeriods())
	assert.Equal(t, 4, tr.Len())
}

func TestTraceMeasuredMilliHz(t *testing.T) {
	// A perfect 5-cycle half-period at a 100 Hz clock is a 10 Hz square
	// wave.
	tr := NewTrace()
	for i := uint64(0); i <= 20; i++ {
		mask := uint8(0b0101)
		if i%2 == 1 {
			mask = 0b1010
		}
		tr.Drive(mask, i*5)
	}

	assert.Equal(t, uint64(10_000), tr.MeasuredMilliHz(100))
}

func TestTraceMeasuredTooShort(t *testing.T) {
	tr := NewTrace()
	assert.Equal(t, uint64(0), tr.MeasuredMilliHz(100))
	tr.Drive(0b0101, 0)
	assert.Equal(t, uint64(0), tr.MeasuredMilliHz(100))
}

func TestTraceLimitKeepsTail(t *testing.T) {
	tr := NewTraceLimit(10)
	for i := uint64(0); i < 100; i++ {
		tr.Drive(uint8(i%2)*0b1111, i)
	}

	got := tr.Transitions()
	assert.LessOrEqual(t, len(got), 20, "limited trace must not grow unbounded")
	assert.Equal(t, uint64(99), got[len(got)-1].Cycle, "the newest transition survives trimming")
}

func TestClaimConflict(t *testing.T) {
	a, err := ClaimGroup(0)
	require.NoError(t, err)
	defer a.Release()

	_, err = ClaimGroup(0)
	assert.True(t, errors.Is(err, ErrPinConflict), "same base must conflict")

	_, err = ClaimGroup(3)
	assert.True(t, errors.Is(err, ErrPinConflict), "overlapping group must conflict")

	b, err := ClaimGroup(4)
	require.NoError(t, err, "adjacent non-overlapping group is fine")
	b.Release()
}

func TestClaimReleaseAllowsReclaim(t *testing.T) {
	a, err := ClaimGroup(8)
	require.NoError(t, err)
	a.Release()
	a.Release() // double release is a no-op

	b, err := ClaimGroup(8)
	require.NoError(t, err)
	assert.Equal(t, uint(8), b.Base())
	b.Release()
}

func TestClaimRange(t *testing.T) {
	_, err := ClaimGroup(MaxPin)
	assert.True(t, errors.Is(err, ErrPinRange), "group must fit below MaxPin")

	c, err := ClaimGroup(MaxPin - 3)
	require.NoError(t, err)
	c.Release()
}
