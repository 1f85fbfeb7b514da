package pairmode

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens the console port, normally the USB CDC-ACM gadget
// /dev/ttyGS0.
func OpenSerial(port string, baud int) (serial.Port, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	return p, nil
}
