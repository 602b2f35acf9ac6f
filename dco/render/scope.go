package render

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/valerio/go-dco/dco/bit"
	"github.com/valerio/go-dco/dco/gpio"
)

const (
	scopeRefresh  = time.Second / 30
	laneRowHeight = 2 // one row for the waveform, one spacer
	headerRows    = 2
)

// Status is the live readout drawn above the waveform lanes.
type Status struct {
	Target    string
	Measured  string
	Periods   uint64
	Underruns uint64
}

// Scope is a terminal oscilloscope over a pin trace: four lanes of square
// wave, redrawn while the oscillator runs. It owns the terminal until Run
// returns.
type Scope struct {
	screen tcell.Screen
	trace  *gpio.Trace
}

// NewScope initializes the terminal for a scope over trace.
func NewScope(trace *gpio.Trace) (*Scope, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("scope: failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("scope: failed to initialize terminal: %v", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	return &Scope{screen: screen, trace: trace}, nil
}

// Run redraws until the user quits (q, Esc or Ctrl-C) or done closes.
// status is polled once per frame.
func (s *Scope) Run(done <-chan struct{}, status func() Status) {
	defer s.screen.Fini()

	events := make(chan tcell.Event, 8)
	quit := make(chan struct{})
	go s.screen.ChannelEvents(events, quit)
	defer close(quit)

	ticker := time.NewTicker(scopeRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return
				}
			case *tcell.EventResize:
				s.screen.Sync()
			}
		case <-ticker.C:
			s.draw(status())
		}
	}
}

func (s *Scope) draw(st Status) {
	s.screen.Clear()
	w, h := s.screen.Size()
	if w < 20 || h < headerRows+bit.GroupWidth*laneRowHeight {
		s.drawText(0, 0, "terminal too small")
		s.screen.Show()
		return
	}

	s.drawText(0, 0, fmt.Sprintf("target %s   measured %s", st.Target, st.Measured))
	s.drawText(0, 1, fmt.Sprintf("periods %d   underruns %d   [q] quit", st.Periods, st.Underruns))

	transitions := s.trace.Transitions()
	if len(transitions) >= 2 {
		s.drawLanes(transitions, w)
	}

	s.screen.Show()
}

// drawLanes samples the tail of the trace uniformly across the terminal
// width and draws each line of the group as a high/low rail.
func (s *Scope) drawLanes(transitions []gpio.Transition, w int) {
	end := transitions[len(transitions)-1].Cycle
	start := transitions[0].Cycle
	// Show roughly the last 4*w half-periods worth of signal.
	span := end - start
	visible := avgGap(transitions) * uint64(4*w)
	if visible > 0 && visible < span {
		start = end - visible
		span = visible
	}
	if span == 0 {
		return
	}

	for col := 0; col < w; col++ {
		cycle := start + uint64(col)*span/uint64(w)
		mask := maskAt(transitions, cycle)
		for line := uint8(0); line < bit.GroupWidth; line++ {
			row := headerRows + int(line)*laneRowHeight
			glyph := '▁'
			if bit.IsSet(line, mask) {
				glyph = '▔'
			}
			s.screen.SetContent(col, row, glyph, nil, tcell.StyleDefault)
		}
	}
}

func avgGap(transitions []gpio.Transition) uint64 {
	n := uint64(len(transitions) - 1)
	if n == 0 {
		return 0
	}
	return (transitions[len(transitions)-1].Cycle - transitions[0].Cycle) / n
}

// maskAt returns the lane mask in effect at the given cycle.
func maskAt(transitions []gpio.Transition, cycle uint64) uint8 {
	mask := transitions[0].Mask
	for _, tr := range transitions {
		if tr.Cycle > cycle {
			break
		}
		mask = tr.Mask
	}
	return mask
}

func (s *Scope) drawText(x, y int, text string) {
	for i, r := range text {
		s.screen.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}
