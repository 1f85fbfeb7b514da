// Package hid encodes relay input events into USB HID input reports and
// writes them to the host-facing HID device.
package hid

import "context"

// Report IDs as declared in ReportDescriptor.
const (
	ReportIDKeyboard = 0x01
	ReportIDMouse    = 0x02
	ReportIDConsumer = 0x03
	ReportIDAbsolute = 0x04
)

// Report sizes on the wire, report ID included.
const (
	KeyboardReportSize = 9
	MouseReportSize    = 5
	ConsumerReportSize = 3
	AbsoluteReportSize = 6

	// MaxReportSize is the longest report the descriptor declares.
	MaxReportSize = KeyboardReportSize
)

// Report is one input report. Data excludes the report ID.
type Report struct {
	ID   byte
	Data []byte
}

// Bytes returns the report as written to the device: ID followed by data.
func (r Report) Bytes() []byte {
	b := make([]byte, 0, len(r.Data)+1)
	b = append(b, r.ID)
	return append(b, r.Data...)
}

// Device accepts fixed-size input reports for the host.
type Device interface {
	WriteReport(ctx context.Context, r Report) error
	Close() error
}
