//go:build !linux

package system

import "log/slog"

type RebootRestarter struct {
	Logger *slog.Logger
}

func (RebootRestarter) Restart() error {
	return ErrNotSupported
}
