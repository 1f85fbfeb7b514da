// Package indicator drives the single status LED through timed blink
// patterns.
package indicator

import (
	"fmt"
	"time"
)

// Mode values double as the payload of the set-indicator command.
type Mode byte

const (
	Off Mode = iota
	On
	DoubleBlinkDisconnected
	DoubleOffBlinkConnected
	SlowToggleCommand
	FastBlinkWaitingConfirm
)

// MaxMode is the highest valid Mode.
const MaxMode = FastBlinkWaitingConfirm

func (m Mode) String() string {
	switch m {
	case Off:
		return "off"
	case On:
		return "on"
	case DoubleBlinkDisconnected:
		return "disconnected"
	case DoubleOffBlinkConnected:
		return "connected"
	case SlowToggleCommand:
		return "command"
	case FastBlinkWaitingConfirm:
		return "waiting_confirm"
	default:
		return fmt.Sprintf("mode(%d)", byte(m))
	}
}

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	return m <= MaxMode
}

// Output is the LED.
type Output interface {
	Set(on bool) error
}

type pattern struct {
	start  bool
	phases []time.Duration
}

var patterns = map[Mode]pattern{
	Off: {start: false},
	On:  {start: true},
	DoubleBlinkDisconnected: {start: false, phases: []time.Duration{
		2700 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond,
	}},
	DoubleOffBlinkConnected: {start: true, phases: []time.Duration{
		2700 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond,
	}},
	SlowToggleCommand:       {start: true, phases: []time.Duration{500 * time.Millisecond}},
	FastBlinkWaitingConfirm: {start: true, phases: []time.Duration{100 * time.Millisecond}},
}

// Indicator tracks the current pattern and the time of its last transition.
// Transitions advance by exactly one phase duration so a late tick does not
// stretch the cycle.
type Indicator struct {
	out   Output
	mode  Mode
	phase int
	on    bool
	last  time.Time
}

func New(out Output, mode Mode, now time.Time) *Indicator {
	i := &Indicator{out: out}
	i.SetMode(mode, now)
	return i
}

func (i *Indicator) Mode() Mode { return i.mode }

// Lit reports the current LED level.
func (i *Indicator) Lit() bool { return i.on }

// SetMode switches pattern, restarting it from its first phase. Invalid
// modes are ignored.
func (i *Indicator) SetMode(m Mode, now time.Time) {
	p, ok := patterns[m]
	if !ok {
		return
	}
	i.mode = m
	i.phase = 0
	i.last = now
	i.set(p.start)
}

// Tick applies every transition due at now.
func (i *Indicator) Tick(now time.Time) {
	p := patterns[i.mode]
	if len(p.phases) == 0 {
		return
	}
	for {
		d := p.phases[i.phase]
		if now.Sub(i.last) < d {
			return
		}
		i.last = i.last.Add(d)
		i.phase = (i.phase + 1) % len(p.phases)
		i.set(!i.on)
	}
}

func (i *Indicator) set(on bool) {
	i.on = on
	if i.out != nil {
		// The LED is advisory; a failed write is retried on the next transition.
		_ = i.out.Set(on)
	}
}
