package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	if !oneOf(cfg.Logger.Level, "debug", "info", "warn", "warning", "error") {
		ve.Add("logger.level: unknown level %q", cfg.Logger.Level)
	}
	if !oneOf(cfg.Logger.Format, "text", "json") {
		ve.Add("logger.format: must be text or json, got %q", cfg.Logger.Format)
	}
	if cfg.HID.Device == "" {
		ve.Add("hid.device: required")
	}
	if cfg.HID.Setup && (cfg.HID.Gadget.Root == "" || cfg.HID.Gadget.Name == "") {
		ve.Add("hid.gadget: configfs_root and name are required when hid.setup is true")
	}
	if !oneOf(cfg.Storage.Driver, "file", "sqlite") {
		ve.Add("storage.driver: must be file or sqlite, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Path == "" {
		ve.Add("storage.path: required")
	}
	if cfg.Pairing.SerialPort == "" {
		ve.Add("pairing.serial_port: required")
	}
	if cfg.Pairing.BaudRate <= 0 {
		ve.Add("pairing.baud_rate: must be positive")
	}
	if !oneOf(cfg.Restart.Method, "reboot", "exit") {
		ve.Add("restart.method: must be reboot or exit, got %q", cfg.Restart.Method)
	}
	if cfg.Loop.Tick <= 0 {
		ve.Add("loop.tick: must be positive")
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
