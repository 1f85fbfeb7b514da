// Package store persists the device configuration: security level, paired
// browser keys and the one-shot pairing-mode request.
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
)

type SecurityLevel string

const (
	// Open relays HID traffic from any connected browser.
	Open SecurityLevel = "open"
	// PairedOnly requires a browser to answer a challenge with a paired key.
	PairedOnly SecurityLevel = "paired_only"
)

var (
	ErrUnknownSecurityLevel = errors.New("unknown security level")
	ErrInvalidKeyLength     = errors.New("invalid key length")
	ErrUnknownDriver        = errors.New("unknown storage driver")
)

func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch l := SecurityLevel(s); l {
	case Open, PairedOnly:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSecurityLevel, s)
	}
}

// KeySize is the length of a pairing key in bytes.
const KeySize = 32

// Key is a pairing key shared with one browser. It is stored as 64 hex digits.
type Key [KeySize]byte

// ParseKey decodes 64 hex digits.
func ParseKey(s string) (Key, error) {
	var k Key
	if len(s) != 2*KeySize {
		return k, fmt.Errorf("%w: %d", ErrInvalidKeyLength, len(s))
	}
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return k, fmt.Errorf("decode key: %w", err)
	}
	return k, nil
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DeviceConfig is the persisted device document.
type DeviceConfig struct {
	SecurityLevel        SecurityLevel  `json:"security_level"`
	PairedBrowsers       map[string]Key `json:"paired_browsers"`
	PairingModeRequested bool           `json:"pairing_mode_requested"`
}

// Default is the configuration of a device that was never paired.
func Default() DeviceConfig {
	return DeviceConfig{
		SecurityLevel:  Open,
		PairedBrowsers: map[string]Key{},
	}
}

// Clone returns a copy that shares no map with c.
func (c DeviceConfig) Clone() DeviceConfig {
	out := c
	out.PairedBrowsers = maps.Clone(c.PairedBrowsers)
	if out.PairedBrowsers == nil {
		out.PairedBrowsers = map[string]Key{}
	}
	return out
}

// BrowserIDs returns paired browser IDs in sorted order.
func (c DeviceConfig) BrowserIDs() []string {
	ids := make([]string, 0, len(c.PairedBrowsers))
	for id := range c.PairedBrowsers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// normalize fills defaults for missing or unusable fields.
func (c *DeviceConfig) normalize() error {
	if c.PairedBrowsers == nil {
		c.PairedBrowsers = map[string]Key{}
	}
	if c.SecurityLevel == "" {
		c.SecurityLevel = Open
		return nil
	}
	if _, err := ParseSecurityLevel(string(c.SecurityLevel)); err != nil {
		// Never loosen a device that has paired browsers.
		c.SecurityLevel = Open
		if len(c.PairedBrowsers) > 0 {
			c.SecurityLevel = PairedOnly
		}
		return err
	}
	return nil
}

// Store loads and saves the device configuration.
type Store interface {
	Load(ctx context.Context) (DeviceConfig, error)
	Save(ctx context.Context, c DeviceConfig) error
	Close() error
}

// OpenStore returns the store for driver ("file" or "sqlite") at path.
func OpenStore(driver, path string) (Store, error) {
	switch driver {
	case "file", "":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// LoadOrDefault loads the configuration, falling back to defaults for
// anything that cannot be read.
func LoadOrDefault(ctx context.Context, s Store, logger *slog.Logger) DeviceConfig {
	c, err := s.Load(ctx)
	if errors.Is(err, ErrUnknownSecurityLevel) {
		logger.Warn("stored security level not recognised",
			slog.String("using", string(c.SecurityLevel)),
			slog.Int("paired_browsers", len(c.PairedBrowsers)),
			slog.Any("error", err))
	}
	if err != nil {
		logger.Warn("device config unreadable, using defaults", slog.Any("error", err))
		if c.PairedBrowsers == nil {
			return Default()
		}
	}
	return c
}
