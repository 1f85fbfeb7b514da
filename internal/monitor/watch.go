package monitor

import (
	"context"
	"log/slog"

	"github.com/seagrayinc/relaykvm/internal/hid"
	"github.com/seagrayinc/relaykvm/internal/protocol"
)

// Watch reads reports from r until ctx is cancelled or a read fails, logging
// each decoded report. It returns the number of reports seen.
func Watch(ctx context.Context, r Reader, logger *slog.Logger) (int, error) {
	var n int
	for {
		if err := ctx.Err(); err != nil {
			return n, nil
		}
		b, err := r.ReadReport()
		if err != nil {
			if ctx.Err() != nil {
				return n, nil
			}
			return n, err
		}
		n++

		parsed, err := hid.ParseReport(b)
		if err != nil {
			logger.Warn("undecodable report", slog.String("bytes", protocol.EncodeToString(b)), slog.Any("error", err))
			continue
		}
		logger.Info("report", slog.String("type", reportType(parsed)), slog.Any("value", parsed))
	}
}

func reportType(v any) string {
	switch v.(type) {
	case hid.KeyboardReport:
		return "keyboard"
	case hid.MouseReport:
		return "mouse"
	case hid.ConsumerReport:
		return "consumer"
	case hid.AbsoluteReport:
		return "absolute"
	default:
		return "unknown"
	}
}
