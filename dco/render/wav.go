// Package render turns a recorded pin trace into something a human can
// inspect: a mono WAV file for offline analysis, or a live terminal scope.
// Nothing here sits on the synthesis path, so host-side float math is fine.
package render

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/valerio/go-dco/dco/bit"
	"github.com/valerio/go-dco/dco/gpio"
)

const (
	wavBitDepth  = 16
	wavAudioFmt  = 1 // PCM
	sampleHigh   = 16000
	sampleLow    = -16000
	lineOfSample = 0 // the lane sampled into the mono stream
)

// WriteWAV samples line 0 of the trace at sampleRate and encodes it as
// 16-bit mono PCM. The engine clock relates trace cycles to wall time. Only
// audio-rate synthesis makes a meaningful WAV; an RF-rate trace will alias,
// which is sometimes exactly what is wanted for a quick look.
func WriteWAV(w io.WriteSeeker, trace *gpio.Trace, clockHz uint32, sampleRate int) error {
	if clockHz == 0 {
		return errors.New("render: zero clock")
	}
	if sampleRate <= 0 {
		return errors.New("render: invalid sample rate")
	}

	transitions := trace.Transitions()
	if len(transitions) < 2 {
		return errors.New("render: trace too short to render")
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: wavBitDepth,
	}

	last := transitions[len(transitions)-1].Cycle
	idx := 0
	for n := 0; ; n++ {
		// Cycle at which sample n is taken.
		cycle := uint64(n) * uint64(clockHz) / uint64(sampleRate)
		if cycle > last {
			break
		}
		for idx+1 < len(transitions) && transitions[idx+1].Cycle <= cycle {
			idx++
		}
		if bit.IsSet(lineOfSample, transitions[idx].Mask) {
			buf.Data = append(buf.Data, sampleHigh)
		} else {
			buf.Data = append(buf.Data, sampleLow)
		}
	}

	enc := wav.NewEncoder(w, sampleRate, wavBitDepth, 1, wavAudioFmt)
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "render: wav write")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "render: wav close")
	}
	return nil
}
