// Package config loads the daemon configuration (relay.yaml).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seagrayinc/relaykvm/internal/hid"
)

// Config is the top-level daemon configuration.
type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	BLE     BLEConfig     `yaml:"ble"`
	HID     HIDConfig     `yaml:"hid"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Storage StorageConfig `yaml:"storage"`
	Pairing PairingConfig `yaml:"pairing"`
	Restart RestartConfig `yaml:"restart"`
	Loop    LoopConfig    `yaml:"loop"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stderr, stdout, or a file path
}

type BLEConfig struct {
	Enabled   bool   `yaml:"enabled"`
	LocalName string `yaml:"local_name"`
}

type HIDConfig struct {
	Device  string            `yaml:"device"`
	Gadget  hid.GadgetConfig  `yaml:"gadget"`
	Setup   bool              `yaml:"setup"`
	Breaker hid.BreakerConfig `yaml:"breaker"`
}

// GPIOConfig names periph.io pins. An empty name disables that pin.
type GPIOConfig struct {
	LED             string `yaml:"led"`
	Button          string `yaml:"button"`
	ButtonActiveLow bool   `yaml:"button_active_low"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // file, sqlite
	Path   string `yaml:"path"`
}

type PairingConfig struct {
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`
}

type RestartConfig struct {
	Method string `yaml:"method"` // reboot, exit
}

type LoopConfig struct {
	Tick time.Duration `yaml:"tick"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		BLE:    BLEConfig{Enabled: true, LocalName: "RelayKVM"},
		HID: HIDConfig{
			Device: "/dev/hidg0",
			Gadget: hid.GadgetConfig{
				Root:         "/sys/kernel/config/usb_gadget",
				Name:         "relaykvm",
				UDCDir:       "/sys/class/udc",
				VendorID:     0x1d6b,
				ProductID:    0x0104,
				Manufacturer: "RelayKVM",
				Product:      "RelayKVM HID",
				Serial:       "0001",
				ACM:          true,
			},
			Breaker: hid.BreakerConfig{MaxFailures: 5, Timeout: 2 * time.Second},
		},
		GPIO:    GPIOConfig{LED: "GPIO17", Button: "GPIO27", ButtonActiveLow: true},
		Storage: StorageConfig{Driver: "file", Path: "/var/lib/relaykvm/device.json"},
		Pairing: PairingConfig{SerialPort: "/dev/ttyGS0", BaudRate: 115200},
		Restart: RestartConfig{Method: "exit"},
		Loop:    LoopConfig{Tick: time.Millisecond},
	}
}

// Load reads path over Defaults. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)
	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize lowercases enum fields so they match the values the store,
// logger and restarter accept.
func normalize(cfg *Config) {
	for _, v := range []*string{
		&cfg.Logger.Level,
		&cfg.Logger.Format,
		&cfg.Storage.Driver,
		&cfg.Restart.Method,
	} {
		*v = strings.ToLower(strings.TrimSpace(*v))
	}
}

// ApplyEnvOverrides maps RELAYKVM_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAYKVM_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("RELAYKVM_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("RELAYKVM_HID_DEVICE"); v != "" {
		cfg.HID.Device = v
	}
	if v := os.Getenv("RELAYKVM_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("RELAYKVM_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("RELAYKVM_PAIRING_SERIAL_PORT"); v != "" {
		cfg.Pairing.SerialPort = v
	}
	if v := os.Getenv("RELAYKVM_BLE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.BLE.Enabled = b
		}
	}
	if v := os.Getenv("RELAYKVM_RESTART_METHOD"); v != "" {
		cfg.Restart.Method = v
	}
}
