//go:build linux

package system

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// RebootRestarter flushes filesystems and reboots the board.
type RebootRestarter struct {
	Logger *slog.Logger
}

func (r RebootRestarter) Restart() error {
	if r.Logger != nil {
		r.Logger.Info("rebooting")
	}
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}
