package store

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testKey(t *testing.T) Key {
	t.Helper()
	k, err := ParseKey(keyHex)
	require.NoError(t, err)
	return k
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := NewSQLiteStore(filepath.Join(dir, "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "device.json")),
		"sqlite": sq,
	}
}

func TestParseKey(t *testing.T) {
	k := testKey(t)
	assert.Equal(t, byte(0x1f), k[31])
	assert.Equal(t, keyHex, k.String())

	_, err := ParseKey(keyHex[:62])
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = ParseKey(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestParseSecurityLevel(t *testing.T) {
	l, err := ParseSecurityLevel("paired_only")
	require.NoError(t, err)
	assert.Equal(t, PairedOnly, l)

	_, err = ParseSecurityLevel("closed")
	assert.ErrorIs(t, err, ErrUnknownSecurityLevel)
}

func TestEmptyStoreLoadsDefaults(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Default(), c)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := DeviceConfig{
				SecurityLevel:        PairedOnly,
				PairedBrowsers:       map[string]Key{"browser-a": testKey(t)},
				PairingModeRequested: true,
			}
			require.NoError(t, s.Save(context.Background(), want))

			got, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, got)

			want.PairingModeRequested = false
			delete(want.PairedBrowsers, "browser-a")
			require.NoError(t, s.Save(context.Background(), want))
			got, err = s.Load(context.Background())
			require.NoError(t, err)
			assert.False(t, got.PairingModeRequested)
			assert.Empty(t, got.PairedBrowsers)
		})
	}
}

func TestFileMissingKeysTakeDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"paired_browsers":{"b":"`+keyHex+`"}}`), 0600))

	c, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Open, c.SecurityLevel)
	assert.False(t, c.PairingModeRequested)
	assert.Equal(t, []string{"b"}, c.BrowserIDs())
}

func TestFileCorruptFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := NewFileStore(path)
	_, err := s.Load(context.Background())
	assert.Error(t, err)

	c := LoadOrDefault(context.Background(), s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, Default(), c)
}

func TestFileUnknownLevelFallsBackToOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"security_level":"closed"}`), 0600))

	c, err := NewFileStore(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrUnknownSecurityLevel)
	assert.Equal(t, Open, c.SecurityLevel)
}

func TestUnknownLevelWithPairedBrowsersStaysLocked(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := Default()
			c.SecurityLevel = "paired-only"
			c.PairedBrowsers["b1"] = testKey(t)
			require.NoError(t, s.Save(context.Background(), c))

			var logs bytes.Buffer
			got := LoadOrDefault(context.Background(), s, slog.New(slog.NewTextHandler(&logs, nil)))
			assert.Equal(t, PairedOnly, got.SecurityLevel)
			assert.Contains(t, got.PairedBrowsers, "b1")
			assert.Contains(t, logs.String(), "stored security level not recognised")
			assert.Contains(t, logs.String(), "paired-only")
		})
	}
}

func TestSQLiteBadValueKeepsDefault(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO settings (key, value) VALUES ('pairing_mode_requested', 'maybe'), ('security_level', '"paired_only"')`)
	require.NoError(t, err)

	c, err := s.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, PairedOnly, c.SecurityLevel)
	assert.False(t, c.PairingModeRequested)
}

func TestCloneIsIndependent(t *testing.T) {
	c := Default()
	c.PairedBrowsers["a"] = testKey(t)
	d := c.Clone()
	delete(d.PairedBrowsers, "a")
	assert.Len(t, c.PairedBrowsers, 1)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := OpenStore("etcd", "x")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
