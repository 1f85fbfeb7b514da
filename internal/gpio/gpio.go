// Package gpio binds the status LED and the confirmation button to board
// pins through periph.io.
package gpio

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the periph.io host drivers once per process.
func Init() error {
	initOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			initErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return initErr
}

func lookup(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %s not found in hardware", name)
	}
	return p, nil
}

// LED drives an output pin high when lit.
type LED struct {
	pin gpio.PinIO
}

func NewLED(pin gpio.PinIO) (*LED, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("set %s to output: %w", pin.Name(), err)
	}
	return &LED{pin: pin}, nil
}

// OpenLED resolves a pin by name, for example "GPIO17".
func OpenLED(name string) (*LED, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return NewLED(p)
}

func (l *LED) Set(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return l.pin.Out(level)
}

// Button reads a momentary switch.
type Button struct {
	pin       gpio.PinIO
	activeLow bool
}

// NewButton configures pin as an input, pulled towards the released level.
func NewButton(pin gpio.PinIO, activeLow bool) (*Button, error) {
	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("set %s to input: %w", pin.Name(), err)
	}
	return &Button{pin: pin, activeLow: activeLow}, nil
}

func OpenButton(name string, activeLow bool) (*Button, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return NewButton(p, activeLow)
}

func (b *Button) Pressed() bool {
	high := b.pin.Read() == gpio.High
	return high != b.activeLow
}

// Released is a Button stand-in for boards without one.
type Released struct{}

func (Released) Pressed() bool { return false }

// Dark is an LED stand-in for boards without one.
type Dark struct{}

func (Dark) Set(bool) error { return nil }
