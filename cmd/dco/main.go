package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/valerio/go-dco/dco"
	"github.com/valerio/go-dco/dco/freq"
	"github.com/valerio/go-dco/dco/gpio"
	"github.com/valerio/go-dco/dco/render"
	"github.com/valerio/go-dco/dco/synth"
)

const scopeTraceLimit = 1 << 16

func main() {
	app := cli.NewApp()
	app.Name = "dco"
	app.Description = "A digitally controlled oscillator for GPIO-driven radio beacons"
	app.Usage = "dco [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.Uint64Flag{
			Name:  "clock",
			Usage: "Engine clock in Hz",
			Value: 135_000_000,
		},
		cli.StringFlag{
			Name:  "freq",
			Usage: "Target frequency in Hz, millihertz resolution (e.g. 14097000.5)",
		},
		cli.Uint64Flag{
			Name:  "periods",
			Usage: "Number of output periods to synthesize in headless mode",
			Value: 100_000,
		},
		cli.UintFlag{
			Name:  "pin-base",
			Usage: "First line of the 4-line output group",
			Value: 6,
		},
		cli.StringFlag{
			Name:  "wav",
			Usage: "Write the synthesized waveform to a WAV file",
		},
		cli.IntFlag{
			Name:  "sample-rate",
			Usage: "Sample rate for WAV export",
			Value: 48_000,
		},
		cli.BoolFlag{
			Name:  "scope",
			Usage: "Show a live terminal scope (paces the engine to real time)",
		},
		cli.StringFlag{
			Name:  "fsk",
			Usage: "Tone-step sequence as freqHz@periods pairs, e.g. 600@3000,601.46@3000",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
	app.Action = runOscillator

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running oscillator", "error", err)
		os.Exit(1)
	}
}

// toneStep is one element of an FSK sequence: hold target for periods
// output periods.
type toneStep struct {
	target  freq.MilliHz
	periods uint64
}

func runOscillator(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	clock := c.Uint64("clock")
	if clock == 0 || clock > 1<<32-1 {
		return errors.New("clock must be a positive 32-bit value")
	}

	var steps []toneStep
	switch {
	case c.String("fsk") != "":
		var err error
		steps, err = parseToneSteps(c.String("fsk"), c.Uint64("periods"))
		if err != nil {
			return err
		}
	case c.String("freq") != "":
		target, err := freq.Parse(c.String("freq"))
		if err != nil {
			return err
		}
		steps = []toneStep{{target: target, periods: c.Uint64("periods")}}
	default:
		cli.ShowAppHelp(c)
		return errors.New("no target frequency provided (use --freq or --fsk)")
	}

	var total uint64
	for _, s := range steps {
		total += s.periods
	}

	trace := gpio.NewTrace()
	scopeMode := c.Bool("scope")
	if scopeMode {
		trace = gpio.NewTraceLimit(scopeTraceLimit)
		total = 0 // run until the scope quits
	}

	osc := dco.New(dco.Config{
		ClockHz:    uint32(clock),
		PinBase:    c.Uint("pin-base"),
		Pins:       trace,
		MaxPeriods: total,
		RealTime:   scopeMode,
	})

	if err := osc.Start(steps[0].target); err != nil {
		return err
	}
	defer osc.Stop()

	slog.Info("synthesis limits",
		"clock_hz", clock,
		"max_target", synth.MaxMilliHz(uint32(clock)))

	if scopeMode {
		return runScope(osc, trace, uint32(clock), steps)
	}

	// Headless: step through the tone sequence by period count, then wait
	// for the engine to finish.
	var elapsed uint64
	for i, step := range steps {
		if i > 0 {
			if err := osc.SetFrequency(step.target); err != nil {
				return err
			}
		}
		elapsed += step.periods
		for osc.Periods() < elapsed {
			time.Sleep(time.Millisecond)
		}
		slog.Info("tone complete", "target", step.target, "periods", step.periods)
	}
	osc.Wait()

	measured := trace.MeasuredMilliHz(uint32(clock))
	slog.Info("synthesis complete",
		"periods", osc.Periods(),
		"underruns", osc.Underruns(),
		"measured", freq.MilliHz(measured))

	if path := c.String("wav"); path != "" {
		if err := writeWAV(path, trace, uint32(clock), c.Int("sample-rate")); err != nil {
			return err
		}
		slog.Info("waveform exported", "path", path)
	}
	return nil
}

func runScope(osc *dco.Oscillator, trace *gpio.Trace, clock uint32, steps []toneStep) error {
	scope, err := render.NewScope(trace)
	if err != nil {
		return err
	}

	// A multi-tone sequence keeps keying while the scope is open.
	quit := make(chan struct{})
	defer close(quit)
	if len(steps) > 1 {
		go cycleTones(osc, steps, quit)
	}

	scope.Run(quit, func() render.Status {
		return render.Status{
			Target:    osc.Target().String(),
			Measured:  freq.MilliHz(trace.MeasuredMilliHz(clock)).String(),
			Periods:   osc.Periods(),
			Underruns: osc.Underruns(),
		}
	})
	return nil
}

// cycleTones repeats the FSK sequence, holding each tone for its period
// count, until quit closes. The first tone is already playing when it
// starts.
func cycleTones(osc *dco.Oscillator, steps []toneStep, quit <-chan struct{}) {
	i := 0
	elapsed := steps[0].periods
	for {
		for osc.Periods() < elapsed {
			select {
			case <-quit:
				return
			case <-time.After(time.Millisecond):
			}
		}

		i = (i + 1) % len(steps)
		if osc.SetFrequency(steps[i].target) != nil {
			return
		}
		elapsed += steps[i].periods
	}
}

func writeWAV(path string, trace *gpio.Trace, clock uint32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %v", err)
	}
	defer f.Close()
	return render.WriteWAV(f, trace, clock, sampleRate)
}

// parseToneSteps reads an FSK sequence such as "600@3000,601.46@3000". A
// missing @periods part falls back to the --periods value.
func parseToneSteps(s string, defaultPeriods uint64) ([]toneStep, error) {
	var steps []toneStep
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		tone, periods := part, defaultPeriods
		if i := strings.IndexByte(part, '@'); i >= 0 {
			tone = part[:i]
			n, err := strconv.ParseUint(part[i+1:], 10, 64)
			if err != nil || n == 0 {
				return nil, fmt.Errorf("bad period count in tone step %q", part)
			}
			periods = n
		}

		target, err := freq.Parse(tone)
		if err != nil {
			return nil, err
		}
		steps = append(steps, toneStep{target: target, periods: periods})
	}
	if len(steps) == 0 {
		return nil, errors.New("empty tone sequence")
	}
	return steps, nil
}
