package protocol

import "fmt"

// AuthResult is the single payload byte of an auth result frame.
type AuthResult byte

const (
	AuthFail        AuthResult = 0
	AuthSuccess     AuthResult = 1
	AuthNotRequired AuthResult = 2
)

func (r AuthResult) String() string {
	switch r {
	case AuthFail:
		return "fail"
	case AuthSuccess:
		return "success"
	case AuthNotRequired:
		return "not_required"
	default:
		return fmt.Sprintf("auth_result(%d)", byte(r))
	}
}

// PairingStatus is the single payload byte of a pairing status frame.
type PairingStatus byte

const (
	PairingPressConfirm PairingStatus = 0
	PairingEntering     PairingStatus = 1
	PairingTimeout      PairingStatus = 2
	PairingAlready      PairingStatus = 3
)

func (s PairingStatus) String() string {
	switch s {
	case PairingPressConfirm:
		return "press_confirm"
	case PairingEntering:
		return "entering"
	case PairingTimeout:
		return "timeout"
	case PairingAlready:
		return "already"
	default:
		return fmt.Sprintf("pairing_status(%d)", byte(s))
	}
}

// Build assembles a frame with its checksum trailer.
func Build(address, command byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d", ErrPayloadTooLarge, len(payload))
	}
	out := make([]byte, 0, Overhead+len(payload))
	out = append(out, Header0, Header1, address, command, byte(len(payload)))
	out = append(out, payload...)
	out = append(out, Checksum(out))
	return out, nil
}

// mustBuild is for payloads whose size is fixed below MaxPayload.
func mustBuild(command byte, payload []byte) []byte {
	b, err := Build(AddressDevice, command, payload)
	if err != nil {
		panic(err)
	}
	return b
}

// BuildAuthChallenge frames a 32-byte challenge.
func BuildAuthChallenge(challenge [32]byte) []byte {
	return mustBuild(CmdAuthChallenge, challenge[:])
}

func BuildAuthResult(r AuthResult) []byte {
	return mustBuild(CmdAuthResult, []byte{byte(r)})
}

func BuildPairingStatus(s PairingStatus) []byte {
	return mustBuild(CmdPairingStatus, []byte{byte(s)})
}
