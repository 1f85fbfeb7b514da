package hid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 2 * time.Second
	defaultWriteTimeout              = 100 * time.Millisecond
)

// BreakerConfig configures the circuit breaker in front of the gadget device.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive write failures that open the circuit.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long writes fail fast before a probe is allowed.
	Timeout time.Duration `yaml:"timeout"`
}

// Gadget writes reports to a Linux USB gadget HID character device
// (/dev/hidgN). While the host is absent writes fail with ESHUTDOWN; the
// breaker turns that into fast failures instead of one syscall per report.
type Gadget struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker[struct{}]

	mu sync.Mutex
	f  *os.File
}

func OpenGadget(path string, cfg BreakerConfig, logger *slog.Logger) (*Gadget, error) {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}

	g := &Gadget{path: path, timeout: defaultWriteTimeout, logger: logger}
	g.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "hid:" + path,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	if err := g.open(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gadget) open() error {
	f, err := os.OpenFile(g.path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", g.path, err)
	}
	g.f = f
	return nil
}

func (g *Gadget) WriteReport(ctx context.Context, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, g.write(r.Bytes())
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("hid %s circuit open: %w", g.path, err)
	}
	return err
}

func (g *Gadget) write(b []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.f == nil {
		if err := g.open(); err != nil {
			return err
		}
	}
	if err := g.f.SetWriteDeadline(time.Now().Add(g.timeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		g.logger.Debug("set write deadline", slog.Any("error", err))
	}
	if _, err := g.f.Write(b); err != nil {
		// The host may have re-enumerated; reopen on the next write.
		_ = g.f.Close()
		g.f = nil
		return fmt.Errorf("write %s: %w", g.path, err)
	}
	return nil
}

func (g *Gadget) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.f == nil {
		return nil
	}
	err := g.f.Close()
	g.f = nil
	return err
}
