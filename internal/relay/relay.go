// Package relay ties the transport, framer, HID encoder, authentication
// machine and indicator together in one cooperative scheduling loop.
package relay

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/seagrayinc/relaykvm/internal/auth"
	"github.com/seagrayinc/relaykvm/internal/hid"
	"github.com/seagrayinc/relaykvm/internal/indicator"
	"github.com/seagrayinc/relaykvm/internal/protocol"
)

// DefaultTick is the pause between loop iterations.
const DefaultTick = time.Millisecond

// Transport sends bytes on the single outbound channel shared by all links.
type Transport interface {
	Notify(frame []byte) error
}

// Relay owns every piece of loop state. Only Deliver, LinkUp and LinkDown may
// be called from other goroutines.
type Relay struct {
	transport Transport
	encoder   *hid.Encoder
	auth      *auth.Machine
	indicator *indicator.Indicator
	logger    *slog.Logger

	// Now is read once per tick.
	Now  func() time.Time
	Tick time.Duration

	framer  protocol.Framer
	dropped int
	links   LinkSet
	in      inbox
}

// New wires m to the relay's link set and outbound channel.
func New(t Transport, enc *hid.Encoder, m *auth.Machine, ind *indicator.Indicator, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		transport: t,
		encoder:   enc,
		auth:      m,
		indicator: ind,
		logger:    logger,
		Now:       time.Now,
		Tick:      DefaultTick,
		links:     LinkSet{},
	}
	m.Notify = r.notify
	m.Connected = func() bool { return r.links.Len() > 0 }
	if m.Indicator == nil {
		m.Indicator = ind
	}
	return r
}

// Deliver queues received bytes. It is the transport's receive callback.
func (r *Relay) Deliver(p []byte) {
	r.in.write(p)
}

func (r *Relay) LinkUp(id string) {
	r.in.event(linkEvent{id: id, up: true})
}

func (r *Relay) LinkDown(id string) {
	r.in.event(linkEvent{id: id, up: false})
}

// Links returns the connected link IDs.
func (r *Relay) Links() []string {
	return r.links.IDs()
}

func (r *Relay) notify(frame []byte) {
	if r.links.Len() == 0 {
		r.logger.Debug("no link for outbound frame", slog.String("frame", protocol.EncodeToString(frame)))
		return
	}
	if err := r.transport.Notify(frame); err != nil {
		r.logger.Warn("failed to notify", slog.Any("error", err))
	}
}

// Run ticks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("relay running")
	t := time.NewTicker(r.Tick)
	defer t.Stop()
	for {
		r.Step(ctx, r.Now())
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Step runs one loop iteration: queued link events and bytes, challenge and
// pairing timers, every complete frame, then the indicator.
func (r *Relay) Step(ctx context.Context, now time.Time) {
	events, data := r.in.take()
	for _, e := range events {
		r.applyLink(e, now)
	}
	_, _ = r.framer.Write(data)

	r.auth.Poll(ctx, now)

	for {
		_, raw, ok := r.framer.Next()
		if !ok {
			break
		}
		if _, err := r.Dispatch(ctx, raw, now); err != nil {
			r.logger.Warn("dispatch failed", slog.Any("error", err))
		}
	}
	if n := r.framer.Dropped(); n != r.dropped {
		r.logger.Debug("resynchronized", slog.Int("dropped", n-r.dropped))
		r.dropped = n
	}

	r.indicator.Tick(now)
}

func (r *Relay) applyLink(e linkEvent, now time.Time) {
	if e.up {
		if r.links.Add(e.id) {
			r.logger.Info("link connected", slog.String("link", e.id), slog.Int("links", r.links.Len()))
			r.auth.LinkUp(now)
		}
		return
	}
	if r.links.Remove(e.id) {
		r.logger.Info("link disconnected", slog.String("link", e.id), slog.Int("links", r.links.Len()))
		r.auth.LinkDown(now)
	}
}

// Dispatch performs the action for the frame at the start of raw and returns
// the bytes it spans. Unknown commands and short payloads are consumed
// without effect.
func (r *Relay) Dispatch(ctx context.Context, raw []byte, now time.Time) (int, error) {
	f, n, err := protocol.Parse(raw)
	if err != nil {
		return 0, err
	}
	if !f.ChecksumValid() {
		// Inbound checksums are not enforced.
		r.logger.Debug("checksum mismatch", slog.String("frame", protocol.EncodeToString(raw[:n])))
	}

	p := f.Payload
	switch f.Command {
	case protocol.CmdKeyboard:
		if !r.hidAllowed(f, 2) {
			break
		}
		r.encoder.Keyboard(ctx, p[0], p[2:])

	case protocol.CmdConsumer:
		if !r.hidAllowed(f, 2) {
			break
		}
		r.encoder.Consumer(ctx, binary.LittleEndian.Uint16(p))

	case protocol.CmdMouseAbsolute:
		if !r.hidAllowed(f, 6) {
			break
		}
		r.encoder.MouseAbsolute(ctx, p[0],
			binary.LittleEndian.Uint16(p[1:]),
			binary.LittleEndian.Uint16(p[3:]),
			int8(p[5]))

	case protocol.CmdMouseRelative:
		if !r.hidAllowed(f, 4) {
			break
		}
		r.encoder.MouseRelative(ctx, p[0], int8(p[1]), int8(p[2]), int8(p[3]))

	case protocol.CmdSetIndicatorLED:
		if len(p) < 1 {
			break
		}
		if m := indicator.Mode(p[0]); m.Valid() {
			r.indicator.SetMode(m, now)
		}

	case protocol.CmdPairingRequest:
		r.auth.RequestPairing(now)

	case protocol.CmdAuthResponse:
		if len(p) < auth.ChallengeSize {
			break
		}
		r.auth.Verify(now, p[:auth.ChallengeSize])

	default:
		r.logger.Debug("ignoring command", slog.Int("command", int(f.Command)))
	}
	return n, nil
}

func (r *Relay) hidAllowed(f protocol.Frame, minLen int) bool {
	if len(f.Payload) < minLen {
		r.logger.Debug("short payload", slog.Int("command", int(f.Command)), slog.Int("len", len(f.Payload)))
		return false
	}
	if !r.auth.Authorized() {
		r.logger.Debug("dropping input from unauthenticated link", slog.Int("command", int(f.Command)))
		return false
	}
	return true
}
