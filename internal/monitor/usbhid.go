package monitor

import (
	"fmt"

	usbhid "rafaelmartins.com/p/usbhid"
)

// Reader yields raw input reports, report ID first.
type Reader interface {
	ReadReport() ([]byte, error)
	Close() error
}

type usbDevice struct{ d *usbhid.Device }

// OpenHID opens the first HID interface matching vendorID and productID.
func OpenHID(vendorID, productID uint16) (Reader, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.VendorId() == vendorID && dev.ProductId() == productID
	}, true, false)
	if err != nil {
		return nil, fmt.Errorf("open hid %04x:%04x: %w", vendorID, productID, err)
	}
	return &usbDevice{d}, nil
}

// ListHID returns every HID interface the OS exposes with its report lengths.
func ListHID() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:         d.Path(),
			VendorID:     d.VendorId(),
			ProductID:    d.ProductId(),
			Product:      d.Product(),
			Manufacturer: d.Manufacturer(),
			InputLength:  int(d.GetInputReportLength()),
		})
	}
	return out, nil
}

func (d *usbDevice) ReadReport() ([]byte, error) {
	id, buf, err := d.d.GetInputReport()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(buf)+1)
	out = append(out, id)
	return append(out, buf...), nil
}

func (d *usbDevice) Close() error { return d.d.Close() }
