package hid

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// ConsumerReleaseDelay is how long a consumer usage is held before the
// encoder sends the matching release.
const ConsumerReleaseDelay = 50 * time.Millisecond

// Encoder turns input events into reports on a Device. Write failures are
// logged and dropped.
type Encoder struct {
	Device Device
	Logger *slog.Logger

	// Wait blocks for d or until ctx is done. Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration)

	failures rate.Sometimes
	failed   int
}

func NewEncoder(dev Device, log *slog.Logger) *Encoder {
	if log == nil {
		log = slog.Default()
	}
	return &Encoder{
		Device:   dev,
		Logger:   log,
		failures: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Failed returns the number of reports the device rejected.
func (e *Encoder) Failed() int {
	return e.failed
}

func (e *Encoder) send(ctx context.Context, r Report) {
	if err := e.Device.WriteReport(ctx, r); err != nil {
		e.failed++
		e.failures.Do(func() {
			e.Logger.Warn("failed to write report",
				slog.Int("report_id", int(r.ID)),
				slog.Int("failures", e.failed),
				slog.Any("error", err))
		})
	}
}

// Keyboard sends modifier state and up to six key codes; extra keys are
// dropped and missing ones are zero.
func (e *Encoder) Keyboard(ctx context.Context, modifiers byte, keys []byte) {
	r := KeyboardReport{Modifiers: modifiers}
	copy(r.Keys[:], keys)
	e.send(ctx, r.Report())
}

func (e *Encoder) MouseRelative(ctx context.Context, buttons byte, dx, dy, wheel int8) {
	e.send(ctx, MouseReport{Buttons: buttons, X: dx, Y: dy, Wheel: wheel}.Report())
}

// MouseAbsolute sends a digitizer report. A non-zero scroll is delivered as
// a separate relative report carrying only the wheel.
func (e *Encoder) MouseAbsolute(ctx context.Context, buttons byte, x, y uint16, scroll int8) {
	e.send(ctx, AbsoluteReport{Flags: AbsoluteFlags(buttons), X: x, Y: y}.Report())
	if scroll != 0 {
		e.send(ctx, MouseReport{Wheel: scroll}.Report())
	}
}

// Consumer presses a consumer-control usage and releases it after
// ConsumerReleaseDelay. A zero usage is sent once with no release.
func (e *Encoder) Consumer(ctx context.Context, usage uint16) {
	e.send(ctx, ConsumerReport{Usage: usage}.Report())
	if usage == 0 {
		return
	}
	e.wait(ctx, ConsumerReleaseDelay)
	e.send(ctx, ConsumerReport{}.Report())
}

func (e *Encoder) wait(ctx context.Context, d time.Duration) {
	if e.Wait != nil {
		e.Wait(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
