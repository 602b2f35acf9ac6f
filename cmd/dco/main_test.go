package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-dco/dco"
	"github.com/valerio/go-dco/dco/freq"
)

func TestParseToneSteps(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []toneStep
		wantErr  bool
	}{
		{
			name:  "single tone with period count",
			input: "600@3000",
			expected: []toneStep{
				{target: freq.FromHz(600), periods: 3000},
			},
		},
		{
			name:  "wspr tone pair",
			input: "14097000@5000,14097001.465@5000",
			expected: []toneStep{
				{target: freq.MilliHz(14_097_000_000), periods: 5000},
				{target: freq.MilliHz(14_097_001_465), periods: 5000},
			},
		},
		{
			name:  "missing period count falls back to default",
			input: "600,601.46@200",
			expected: []toneStep{
				{target: freq.FromHz(600), periods: 1000},
				{target: freq.MilliHz(601_460), periods: 200},
			},
		},
		{name: "zero period count", input: "600@0", wantErr: true},
		{name: "bad period count", input: "600@many", wantErr: true},
		{name: "bad frequency", input: "14.0MHz@100", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "only commas", input: ",,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseToneSteps(tt.input, 1000)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCycleTonesAdvancesSequence(t *testing.T) {
	// The keyer must walk the whole sequence while the oscillator free-runs,
	// not sit on the first tone.
	osc := dco.New(dco.Config{ClockHz: 135_000_000, PinBase: 6})
	steps := []toneStep{
		{target: freq.FromHz(14_097_000), periods: 500},
		{target: freq.MilliHz(14_097_001_465), periods: 500},
	}
	require.NoError(t, osc.Start(steps[0].target))
	defer osc.Stop()

	quit := make(chan struct{})
	go cycleTones(osc, steps, quit)

	deadline := time.Now().Add(5 * time.Second)
	for osc.Target() != steps[1].target {
		if time.Now().After(deadline) {
			t.Fatalf("keyer never advanced past the first tone (target %v)", osc.Target())
		}
		time.Sleep(time.Millisecond)
	}

	close(quit)
}
