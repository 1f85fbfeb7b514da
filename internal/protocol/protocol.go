// Package protocol implements the relay wire format:
//
//	57 AB <address> <command> <length> <payload...> <checksum>
//
// The checksum is the sum of every preceding byte modulo 256. It is written on
// every outbound frame but is not enforced on inbound frames.
package protocol

import (
	"encoding/hex"
	"errors"
	"strings"
)

const (
	Header0 = 0x57
	Header1 = 0xAB

	// HeaderLen covers the two header bytes, address, command and length.
	HeaderLen = 5
	// Overhead is the frame size for an empty payload.
	Overhead = HeaderLen + 1

	MaxPayload = 255

	// AddressDevice is the address used on every frame the device emits.
	AddressDevice = 0x00
)

// Inbound commands.
const (
	CmdGetInfo         = 0x01
	CmdKeyboard        = 0x02
	CmdConsumer        = 0x03
	CmdMouseAbsolute   = 0x04
	CmdMouseRelative   = 0x05
	CmdPairingRequest  = 0xA0
	CmdAuthResponse    = 0xA5
	CmdSetIndicatorLED = 0xE0
)

// Outbound commands.
const (
	CmdAuthChallenge = 0xA1
	CmdAuthResult    = 0xA2
	CmdPairingStatus = 0xA3
)

var (
	ErrInvalidFrame    = errors.New("invalid frame")
	ErrPayloadTooLarge = errors.New("payload exceeds 255 bytes")
)

// Frame is a decoded frame. Payload aliases the buffer it was parsed from
// until the caller copies it.
type Frame struct {
	Address  byte
	Command  byte
	Payload  []byte
	Checksum byte
}

// Len is the number of wire bytes the frame occupies.
func (f Frame) Len() int {
	return Overhead + len(f.Payload)
}

// ChecksumValid reports whether the trailer matches the computed checksum.
func (f Frame) ChecksumValid() bool {
	return f.Checksum == Checksum(f.head(), f.Payload)
}

func (f Frame) head() []byte {
	return []byte{Header0, Header1, f.Address, f.Command, byte(len(f.Payload))}
}

// Checksum returns the 8-bit sum of all given bytes.
func Checksum(parts ...[]byte) byte {
	var sum byte
	for _, p := range parts {
		for _, b := range p {
			sum += b
		}
	}
	return sum
}

// Parse decodes a single frame from the start of b and returns it with the
// number of bytes it spans.
func Parse(b []byte) (Frame, int, error) {
	if len(b) < Overhead || b[0] != Header0 || b[1] != Header1 {
		return Frame{}, 0, ErrInvalidFrame
	}
	n := Overhead + int(b[4])
	if len(b) < n {
		return Frame{}, 0, ErrInvalidFrame
	}
	return Frame{
		Address:  b[2],
		Command:  b[3],
		Payload:  b[HeaderLen : n-1],
		Checksum: b[n-1],
	}, n, nil
}

// EncodeToString renders bytes as dash-separated hex for logs.
func EncodeToString(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
