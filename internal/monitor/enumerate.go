// Package monitor inspects a relay from the host it is plugged into: it finds
// the gadget on the USB bus and decodes the input reports it emits.
package monitor

import (
	"fmt"

	"github.com/karalabe/usb"
)

// Default gadget identifiers (Linux Foundation multifunction composite gadget).
const (
	DefaultVID uint16 = 0x1D6B
	DefaultPID uint16 = 0x0104
)

// Info describes one USB interface.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
	Serial       string
	Interface    int
	InputLength  int
}

// Enumerate lists USB interfaces matching vendorID and productID; zero
// matches any.
func Enumerate(vendorID, productID uint16) ([]Info, error) {
	if !usb.Supported() {
		return nil, fmt.Errorf("usb enumeration not supported on this platform")
	}
	infos, err := usb.Enumerate(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	out := make([]Info, 0, len(infos))
	for _, i := range infos {
		out = append(out, Info{
			Path:         i.Path,
			VendorID:     i.VendorID,
			ProductID:    i.ProductID,
			Product:      i.Product,
			Manufacturer: i.Manufacturer,
			Serial:       i.Serial,
			Interface:    i.Interface,
		})
	}
	return out, nil
}
