// Package auth implements link authentication and the pairing ceremony.
//
// A single authentication state covers every link: each new connection
// resets it and, after ChallengeDelay, issues one 32-byte challenge that the
// browser answers with HMAC-SHA256(key, challenge) for its paired key.
// A pairing request arms a PairingWindow during which a press of the
// physical button switches the device into pairing mode.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"log/slog"
	"time"

	"github.com/seagrayinc/relaykvm/internal/indicator"
	"github.com/seagrayinc/relaykvm/internal/protocol"
	"github.com/seagrayinc/relaykvm/internal/store"
	"github.com/seagrayinc/relaykvm/internal/system"
)

const (
	ChallengeDelay    = 500 * time.Millisecond
	PairingWindow     = 10 * time.Second
	DefaultFlushDelay = 100 * time.Millisecond
	ChallengeSize     = 32
)

// Notifier sends an outbound frame to the connected browsers.
type Notifier func(frame []byte)

// Presence reports whether the confirmation button is held.
type Presence interface {
	Pressed() bool
}

// Machine holds the authentication and pairing state. It is driven from the
// scheduler loop and is not safe for concurrent use.
type Machine struct {
	Device    store.DeviceConfig
	Store     store.Store
	Indicator *indicator.Indicator
	Presence  Presence
	Restarter system.Restarter
	Notify    Notifier

	// Connected reports whether any link is up.
	Connected func() bool

	Rand       io.Reader
	Sleep      func(time.Duration)
	FlushDelay time.Duration
	Logger     *slog.Logger

	authenticated bool
	pending       *[ChallengeSize]byte
	challengeAt   time.Time
	deadline      time.Time
}

func (m *Machine) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *Machine) notify(frame []byte) {
	if m.Notify != nil {
		m.Notify(frame)
	}
}

// Authenticated reports whether a browser proved a paired key.
func (m *Machine) Authenticated() bool { return m.authenticated }

// Authorized reports whether HID traffic may be relayed.
func (m *Machine) Authorized() bool {
	return m.Device.SecurityLevel == store.Open || m.authenticated
}

// ChallengePending reports whether a challenge awaits its response.
func (m *Machine) ChallengePending() bool { return m.pending != nil }

// PairingArmed reports whether the confirmation window is open.
func (m *Machine) PairingArmed() bool { return !m.deadline.IsZero() }

// RestingMode is the indicator pattern for the current connection state.
func (m *Machine) RestingMode() indicator.Mode {
	switch {
	case m.Connected != nil && !m.Connected():
		return indicator.DoubleBlinkDisconnected
	case m.authenticated && m.Device.SecurityLevel == store.PairedOnly:
		return indicator.On
	default:
		return indicator.DoubleOffBlinkConnected
	}
}

func (m *Machine) rest(now time.Time) {
	if m.Indicator == nil || m.PairingArmed() {
		return
	}
	m.Indicator.SetMode(m.RestingMode(), now)
}

// LinkUp resets authentication and schedules a challenge.
func (m *Machine) LinkUp(now time.Time) {
	m.authenticated = false
	m.pending = nil
	m.challengeAt = now.Add(ChallengeDelay)
	m.rest(now)
}

// LinkDown cancels a scheduled challenge once the last link is gone.
func (m *Machine) LinkDown(now time.Time) {
	if m.Connected == nil || !m.Connected() {
		m.challengeAt = time.Time{}
		m.pending = nil
		m.authenticated = false
	}
	m.rest(now)
}

// Poll runs the time-driven steps: challenge issuance first, then the
// pairing window.
func (m *Machine) Poll(ctx context.Context, now time.Time) {
	if !m.challengeAt.IsZero() && !now.Before(m.challengeAt) {
		m.challengeAt = time.Time{}
		m.IssueChallenge(now)
	}
	if m.PairingArmed() {
		m.pollPairing(ctx, now)
	}
}

// IssueChallenge authenticates immediately on an open device; otherwise it
// replaces any pending challenge with a fresh one and sends it.
func (m *Machine) IssueChallenge(now time.Time) {
	if m.Device.SecurityLevel == store.Open {
		m.authenticated = true
		m.pending = nil
		m.notify(protocol.BuildAuthResult(protocol.AuthNotRequired))
		m.rest(now)
		return
	}

	r := m.Rand
	if r == nil {
		r = rand.Reader
	}
	var ch [ChallengeSize]byte
	if _, err := io.ReadFull(r, ch[:]); err != nil {
		m.logger().Error("failed to generate challenge", slog.Any("error", err))
		m.pending = nil
		m.notify(protocol.BuildAuthResult(protocol.AuthFail))
		return
	}
	m.pending = &ch
	m.logger().Debug("challenge issued")
	m.notify(protocol.BuildAuthChallenge(ch))
}

// Verify checks a response against the pending challenge and every paired
// key, sending exactly one result frame.
func (m *Machine) Verify(now time.Time, digest []byte) {
	if m.pending == nil {
		m.logger().Warn("auth response without pending challenge")
		m.notify(protocol.BuildAuthResult(protocol.AuthFail))
		return
	}
	ch := m.pending
	m.pending = nil

	for _, id := range m.Device.BrowserIDs() {
		key := m.Device.PairedBrowsers[id]
		mac := hmac.New(sha256.New, key[:])
		mac.Write(ch[:])
		if hmac.Equal(mac.Sum(nil), digest) {
			m.authenticated = true
			m.logger().Info("browser authenticated", slog.String("browser", id))
			m.notify(protocol.BuildAuthResult(protocol.AuthSuccess))
			m.rest(now)
			return
		}
	}

	m.authenticated = false
	m.logger().Warn("auth response matched no paired key", slog.Int("paired", len(m.Device.PairedBrowsers)))
	m.notify(protocol.BuildAuthResult(protocol.AuthFail))
	m.rest(now)
}

// RequestPairing opens the confirmation window. It answers already while a
// window is open or a confirmed request is waiting for its restart.
func (m *Machine) RequestPairing(now time.Time) {
	if m.PairingArmed() || m.Device.PairingModeRequested {
		m.notify(protocol.BuildPairingStatus(protocol.PairingAlready))
		return
	}
	m.deadline = now.Add(PairingWindow)
	if m.Indicator != nil {
		m.Indicator.SetMode(indicator.FastBlinkWaitingConfirm, now)
	}
	m.logger().Info("pairing requested, waiting for button")
	m.notify(protocol.BuildPairingStatus(protocol.PairingPressConfirm))
}

func (m *Machine) cancelPairing(now time.Time) {
	m.deadline = time.Time{}
	m.rest(now)
}

func (m *Machine) pollPairing(ctx context.Context, now time.Time) {
	if !now.Before(m.deadline) {
		m.logger().Info("pairing confirmation timed out")
		m.cancelPairing(now)
		m.notify(protocol.BuildPairingStatus(protocol.PairingTimeout))
		return
	}
	if m.Presence == nil || !m.Presence.Pressed() {
		return
	}

	m.deadline = time.Time{}
	if m.Indicator != nil {
		m.Indicator.SetMode(indicator.On, now)
	}
	m.notify(protocol.BuildPairingStatus(protocol.PairingEntering))

	next := m.Device.Clone()
	next.PairingModeRequested = true
	if err := m.Store.Save(ctx, next); err != nil {
		m.logger().Error("failed to persist pairing mode request", slog.Any("error", err))
		m.rest(now)
		m.notify(protocol.BuildPairingStatus(protocol.PairingTimeout))
		return
	}
	m.Device = next

	delay := m.FlushDelay
	if delay == 0 {
		delay = DefaultFlushDelay
	}
	if m.Sleep != nil {
		m.Sleep(delay)
	} else {
		time.Sleep(delay)
	}

	m.logger().Info("restarting into pairing mode")
	if err := m.Restarter.Restart(); err != nil {
		m.logger().Error("restart failed, withdrawing pairing mode request", slog.Any("error", err))
		m.withdrawPairing(ctx, now)
	}
}

// withdrawPairing clears a persisted request that could not be acted on.
func (m *Machine) withdrawPairing(ctx context.Context, now time.Time) {
	next := m.Device.Clone()
	next.PairingModeRequested = false
	if err := m.Store.Save(ctx, next); err != nil {
		m.logger().Error("failed to clear pairing mode request", slog.Any("error", err))
	}
	m.Device = next
	m.rest(now)
	m.notify(protocol.BuildPairingStatus(protocol.PairingTimeout))
}
