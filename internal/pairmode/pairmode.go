// Package pairmode serves the wired, line-oriented pairing console the
// device boots into after a confirmed pairing request.
package pairmode

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/seagrayinc/relaykvm/internal/indicator"
	"github.com/seagrayinc/relaykvm/internal/store"
	"github.com/seagrayinc/relaykvm/internal/system"
)

// prefixLen is how much of a browser ID is echoed back after pairing.
const prefixLen = 8

// Session holds the configuration edited over the console. Every change is
// saved immediately.
type Session struct {
	Device    store.DeviceConfig
	Store     store.Store
	DeviceID  []byte
	Restarter system.Restarter
	Logger    *slog.Logger
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Handle answers one request line. done is set after DONE, once the caller
// has written the responses it should restart.
func (s *Session) Handle(ctx context.Context, line string) (responses []string, done bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	switch {
	case line == "ID?":
		return []string{"ID:" + hex.EncodeToString(s.DeviceID)}, false

	case strings.HasPrefix(line, "PAIR:"):
		return []string{s.pair(ctx, strings.TrimPrefix(line, "PAIR:"))}, false

	case line == "STATUS":
		return []string{
			"STATUS:mode:pairing",
			"STATUS:security_level:" + string(s.Device.SecurityLevel),
			fmt.Sprintf("STATUS:paired_browsers:%d", len(s.Device.PairedBrowsers)),
		}, false

	case strings.HasPrefix(line, "LEVEL:"):
		return []string{s.level(ctx, strings.TrimPrefix(line, "LEVEL:"))}, false

	case line == "DONE":
		return []string{"OK:rebooting"}, true

	default:
		cmd, _, _ := strings.Cut(line, ":")
		return []string{"ERROR:unknown_command:" + cmd}, false
	}
}

func (s *Session) pair(ctx context.Context, args string) string {
	i := strings.LastIndex(args, ":")
	if i <= 0 {
		return "ERROR:invalid_pair_format"
	}
	browser, keyHex := args[:i], args[i+1:]
	if len(keyHex) != 2*store.KeySize {
		return fmt.Sprintf("ERROR:invalid_key_length:%d", len(keyHex))
	}
	key, err := store.ParseKey(keyHex)
	if err != nil {
		return "ERROR:invalid_key_format"
	}

	next := s.Device.Clone()
	next.PairedBrowsers[browser] = key
	if err := s.save(ctx, next); err != nil {
		return "ERROR:save_failed"
	}
	s.logger().Info("browser paired", slog.String("browser", browser), slog.Int("paired", len(next.PairedBrowsers)))

	prefix := browser
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}
	return "OK:paired:" + prefix
}

func (s *Session) level(ctx context.Context, arg string) string {
	l, err := store.ParseSecurityLevel(arg)
	if err != nil {
		return "ERROR:invalid_level:" + arg
	}
	next := s.Device.Clone()
	next.SecurityLevel = l
	if err := s.save(ctx, next); err != nil {
		return "ERROR:save_failed"
	}
	return "OK:security_level:" + string(l)
}

func (s *Session) save(ctx context.Context, next store.DeviceConfig) error {
	if err := s.Store.Save(ctx, next); err != nil {
		s.logger().Error("failed to save device config", slog.Any("error", err))
		return err
	}
	s.Device = next
	return nil
}

// Serve reads request lines from rw until DONE, EOF or ctx ends, keeping the
// indicator in its command pattern. After DONE it restarts the device.
func (s *Session) Serve(ctx context.Context, rw io.ReadWriter, ind *indicator.Indicator) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if ind != nil {
		ind.SetMode(indicator.SlowToggleCommand, time.Now())
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(rw)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		select {
		case readErr <- sc.Err():
		case <-ctx.Done():
		}
	}()

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	s.logger().Info("pairing console ready")
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read console: %w", err)
			}
			return io.EOF

		case now := <-tick.C:
			if ind != nil {
				ind.Tick(now)
			}

		case line := <-lines:
			responses, done := s.Handle(ctx, line)
			for _, r := range responses {
				if _, err := io.WriteString(rw, r+"\n"); err != nil {
					return fmt.Errorf("write console: %w", err)
				}
			}
			if done {
				s.logger().Info("pairing finished, restarting")
				return s.Restarter.Restart()
			}
		}
	}
}
