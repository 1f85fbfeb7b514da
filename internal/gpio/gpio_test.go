package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestLED(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", L: gpio.High}
	led, err := NewLED(pin)
	require.NoError(t, err)
	assert.Equal(t, gpio.Low, pin.L)

	require.NoError(t, led.Set(true))
	assert.Equal(t, gpio.High, pin.L)
	require.NoError(t, led.Set(false))
	assert.Equal(t, gpio.Low, pin.L)
}

func TestButton(t *testing.T) {
	tests := []struct {
		name      string
		activeLow bool
		level     gpio.Level
		pressed   bool
		pull      gpio.Pull
	}{
		{"active low released", true, gpio.High, false, gpio.PullUp},
		{"active low pressed", true, gpio.Low, true, gpio.PullUp},
		{"active high released", false, gpio.Low, false, gpio.PullDown},
		{"active high pressed", false, gpio.High, true, gpio.PullDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin := &gpiotest.Pin{N: "GPIO27"}
			b, err := NewButton(pin, tt.activeLow)
			require.NoError(t, err)
			assert.Equal(t, tt.pull, pin.P)

			pin.L = tt.level
			assert.Equal(t, tt.pressed, b.Pressed())
		})
	}
}

func TestStandIns(t *testing.T) {
	assert.False(t, Released{}.Pressed())
	assert.NoError(t, Dark{}.Set(true))
}
