package protocol

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseHexString converts a dash-separated hex string to bytes
func parseHexString(s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	if err != nil {
		panic(err)
	}
	return b
}

func drain(f *Framer) [][]byte {
	var out [][]byte
	for {
		_, raw, ok := f.Next()
		if !ok {
			return out
		}
		out = append(out, raw)
	}
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0x0D), Checksum(parseHexString("57-ab-00-05-05-01-0a-f6-00-00")))
	assert.Equal(t, byte(0x0D), Checksum(parseHexString("57-ab-00-05-05"), parseHexString("01-0a-f6-00-00")))
	assert.Equal(t, byte(0), Checksum(nil))
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"auth success", BuildAuthResult(AuthSuccess), "57-ab-00-a2-01-01-a6"},
		{"auth fail", BuildAuthResult(AuthFail), "57-ab-00-a2-01-00-a5"},
		{"auth not required", BuildAuthResult(AuthNotRequired), "57-ab-00-a2-01-02-a7"},
		{"press confirm", BuildPairingStatus(PairingPressConfirm), "57-ab-00-a3-01-00-a6"},
		{"already", BuildPairingStatus(PairingAlready), "57-ab-00-a3-01-03-a9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeToString(tt.got))
		})
	}
}

func TestBuildChallenge(t *testing.T) {
	var ch [32]byte
	for i := range ch {
		ch[i] = byte(i)
	}
	b := BuildAuthChallenge(ch)
	require.Len(t, b, Overhead+32)

	f, n, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, byte(CmdAuthChallenge), f.Command)
	assert.Equal(t, ch[:], f.Payload)
	assert.True(t, f.ChecksumValid())
}

func TestBuildPayloadTooLarge(t *testing.T) {
	_, err := Build(AddressDevice, CmdKeyboard, make([]byte, 256))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	b, err := Build(AddressDevice, CmdKeyboard, make([]byte, 255))
	require.NoError(t, err)
	assert.Len(t, b, 261)
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "57", "57-ab-00-02", "57-ac-00-02-00-00", "57-ab-00-02-02-00-00"} {
		_, _, err := Parse(parseHexString(s))
		assert.ErrorIs(t, err, ErrInvalidFrame, s)
	}
}

func TestFramerChunking(t *testing.T) {
	var stream []byte
	var want [][]byte
	for _, p := range [][]byte{{0x00, 0x00, 0x04}, {}, {0x01, 0x0a, 0xf6, 0x00}, make([]byte, 40)} {
		b, err := Build(0x00, CmdKeyboard, p)
		require.NoError(t, err)
		stream = append(stream, b...)
		want = append(want, b)
	}

	for _, chunk := range []int{1, 2, 3, 7, 16, len(stream)} {
		t.Run("chunk", func(t *testing.T) {
			var f Framer
			var got [][]byte
			for i := 0; i < len(stream); i += chunk {
				end := min(i+chunk, len(stream))
				_, _ = f.Write(stream[i:end])
				got = append(got, drain(&f)...)
			}
			assert.Equal(t, want, got, "chunk size %d", chunk)
			assert.Zero(t, f.Buffered())
		})
	}
}

func TestFramerResync(t *testing.T) {
	frame := parseHexString("57-ab-00-05-05-01-0a-f6-00-00-0d")

	tests := []struct {
		name    string
		garbage string
		dropped int
	}{
		{"no garbage", "", 0},
		{"noise", "00-ff-13", 3},
		{"lone first header byte", "57-57-00", 3},
		{"header second byte first", "ab-57", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Framer
			_, _ = f.Write(parseHexString(tt.garbage))
			_, _ = f.Write(frame)
			got := drain(&f)
			require.Len(t, got, 1)
			assert.Equal(t, frame, got[0])
			assert.Equal(t, tt.dropped, f.Dropped())
		})
	}
}

func TestFramerWaitsForLength(t *testing.T) {
	var f Framer
	_, _ = f.Write(parseHexString("57-ab-00-02"))
	_, _, ok := f.Next()
	assert.False(t, ok)
	assert.Equal(t, 4, f.Buffered())

	_, _ = f.Write(parseHexString("02-00"))
	_, _, ok = f.Next()
	assert.False(t, ok)

	_, _ = f.Write(parseHexString("00-5c"))
	frame, raw, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, byte(CmdKeyboard), frame.Command)
	assert.Len(t, raw, 8)
}

func TestFramerIgnoresChecksum(t *testing.T) {
	var f Framer
	_, _ = f.Write(parseHexString("57-ab-00-05-05-01-0a-f6-00-00-ff"))
	frame, _, ok := f.Next()
	require.True(t, ok)
	assert.False(t, frame.ChecksumValid())
	assert.Equal(t, parseHexString("01-0a-f6-00-00"), frame.Payload)
}
