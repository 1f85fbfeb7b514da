package hid

import (
	"encoding/binary"
	"fmt"
)

// Keyboard modifier bits.
const (
	ModLeftCtrl   = 0x01
	ModLeftShift  = 0x02
	ModLeftAlt    = 0x04
	ModLeftGUI    = 0x08
	ModRightCtrl  = 0x10
	ModRightShift = 0x20
	ModRightAlt   = 0x40
	ModRightGUI   = 0x80
)

// Pointer button bits as carried by the relay protocol.
const (
	ButtonLeft   = 0x01
	ButtonRight  = 0x02
	ButtonMiddle = 0x04
)

// Digitizer flag bits of the absolute report.
const (
	AbsInRange = 0x01
	AbsTip     = 0x02
	AbsBarrel  = 0x04
)

// KeyboardReport is the boot-style keyboard state.
type KeyboardReport struct {
	Modifiers byte
	Keys      [6]byte
}

func (r KeyboardReport) Report() Report {
	data := make([]byte, KeyboardReportSize-1)
	data[0] = r.Modifiers
	copy(data[2:], r.Keys[:])
	return Report{ID: ReportIDKeyboard, Data: data}
}

// MouseReport is a relative pointer movement.
type MouseReport struct {
	Buttons byte
	X       int8
	Y       int8
	Wheel   int8
}

func (r MouseReport) Report() Report {
	return Report{ID: ReportIDMouse, Data: []byte{r.Buttons, byte(r.X), byte(r.Y), byte(r.Wheel)}}
}

// ConsumerReport carries one consumer-control usage; zero releases it.
type ConsumerReport struct {
	Usage uint16
}

func (r ConsumerReport) Report() Report {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, r.Usage)
	return Report{ID: ReportIDConsumer, Data: data}
}

// AbsoluteReport is a digitizer-style pointer position.
type AbsoluteReport struct {
	Flags byte
	X     uint16
	Y     uint16
}

func (r AbsoluteReport) Report() Report {
	data := make([]byte, AbsoluteReportSize-1)
	data[0] = r.Flags
	binary.LittleEndian.PutUint16(data[1:], r.X)
	binary.LittleEndian.PutUint16(data[3:], r.Y)
	return Report{ID: ReportIDAbsolute, Data: data}
}

// AbsoluteFlags maps protocol button bits to digitizer flags. In-range is
// always set.
func AbsoluteFlags(buttons byte) byte {
	flags := byte(AbsInRange)
	if buttons&ButtonLeft != 0 {
		flags |= AbsTip
	}
	if buttons&ButtonRight != 0 {
		flags |= AbsBarrel
	}
	return flags
}

type parserFunc func([]byte) (any, error)

// wrappedParser is a helper to convert a typed parser function into a generic parserFunc.
func wrappedParser[T any](f func([]byte) (T, error)) parserFunc {
	return func(b []byte) (any, error) {
		return f(b)
	}
}

var parserMap = map[byte]parserFunc{
	ReportIDKeyboard: wrappedParser(parseKeyboardReport),
	ReportIDMouse:    wrappedParser(parseMouseReport),
	ReportIDConsumer: wrappedParser(parseConsumerReport),
	ReportIDAbsolute: wrappedParser(parseAbsoluteReport),
}

// ParseReport decodes a report written by this package. b starts with the
// report ID.
func ParseReport(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty report")
	}
	parser, ok := parserMap[b[0]]
	if !ok {
		return nil, fmt.Errorf("unknown report id 0x%02X", b[0])
	}
	return parser(b[1:])
}

func checkLen(name string, b []byte, want int) error {
	if len(b) < want-1 {
		return fmt.Errorf("%s report: got %d data bytes, want %d", name, len(b), want-1)
	}
	return nil
}

func parseKeyboardReport(b []byte) (KeyboardReport, error) {
	if err := checkLen("keyboard", b, KeyboardReportSize); err != nil {
		return KeyboardReport{}, err
	}
	r := KeyboardReport{Modifiers: b[0]}
	copy(r.Keys[:], b[2:8])
	return r, nil
}

func parseMouseReport(b []byte) (MouseReport, error) {
	if err := checkLen("mouse", b, MouseReportSize); err != nil {
		return MouseReport{}, err
	}
	return MouseReport{Buttons: b[0], X: int8(b[1]), Y: int8(b[2]), Wheel: int8(b[3])}, nil
}

func parseConsumerReport(b []byte) (ConsumerReport, error) {
	if err := checkLen("consumer", b, ConsumerReportSize); err != nil {
		return ConsumerReport{}, err
	}
	return ConsumerReport{Usage: binary.LittleEndian.Uint16(b)}, nil
}

func parseAbsoluteReport(b []byte) (AbsoluteReport, error) {
	if err := checkLen("absolute", b, AbsoluteReportSize); err != nil {
		return AbsoluteReport{}, err
	}
	return AbsoluteReport{
		Flags: b[0],
		X:     binary.LittleEndian.Uint16(b[1:]),
		Y:     binary.LittleEndian.Uint16(b[3:]),
	}, nil
}
