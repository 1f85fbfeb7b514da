// Package system wraps the host operations the relay needs: restarting and
// identifying the device.
package system

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var ErrNotSupported = errors.New("not supported on this platform")

// Restarter ends the current process so the device comes back up in the
// mode selected by the persisted configuration. Implementations do not
// return on success.
type Restarter interface {
	Restart() error
}

// RestartFunc adapts a function to Restarter.
type RestartFunc func() error

func (f RestartFunc) Restart() error { return f() }

// ExitRestarter exits the process with Code and relies on the service
// supervisor to start it again.
type ExitRestarter struct {
	Code   int
	Logger *slog.Logger
	exit   func(int)
}

func (r ExitRestarter) Restart() error {
	if r.Logger != nil {
		r.Logger.Info("exiting for restart", slog.Int("code", r.Code))
	}
	exit := r.exit
	if exit == nil {
		exit = os.Exit
	}
	exit(r.Code)
	return nil
}

// NewRestarter returns the restarter for method "reboot" or "exit".
func NewRestarter(method string, logger *slog.Logger) (Restarter, error) {
	switch method {
	case "reboot":
		return RebootRestarter{Logger: logger}, nil
	case "exit", "":
		return ExitRestarter{Code: 3, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown restart method %q", method)
	}
}

const machineIDPath = "/etc/machine-id"

// DeviceID returns a stable identifier for this board: the machine ID when
// available, otherwise the hostname.
func DeviceID() ([]byte, error) {
	return deviceID(machineIDPath)
}

func deviceID(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		s := string(bytes.TrimSpace(b))
		if id, err := hex.DecodeString(s); err == nil && len(id) > 0 {
			return id, nil
		}
		if s != "" {
			return []byte(s), nil
		}
	}
	host, herr := os.Hostname()
	if herr != nil {
		return nil, fmt.Errorf("device id: %w", errors.Join(err, herr))
	}
	return []byte(strings.TrimSpace(host)), nil
}
