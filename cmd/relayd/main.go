// Command relayd relays browser keyboard and mouse input received over BLE to
// the host as a USB HID gadget.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seagrayinc/relaykvm/internal/auth"
	"github.com/seagrayinc/relaykvm/internal/ble"
	"github.com/seagrayinc/relaykvm/internal/config"
	"github.com/seagrayinc/relaykvm/internal/gpio"
	"github.com/seagrayinc/relaykvm/internal/hid"
	"github.com/seagrayinc/relaykvm/internal/indicator"
	"github.com/seagrayinc/relaykvm/internal/logger"
	"github.com/seagrayinc/relaykvm/internal/pairmode"
	"github.com/seagrayinc/relaykvm/internal/protocol"
	"github.com/seagrayinc/relaykvm/internal/relay"
	"github.com/seagrayinc/relaykvm/internal/store"
	"github.com/seagrayinc/relaykvm/internal/system"
)

func main() {
	configPath := flag.String("config", "/etc/relaykvm/relay.yaml", "path to relay.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "relayd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	st, err := store.OpenStore(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	device := store.LoadOrDefault(ctx, st, logger.Component(log, "store"))

	if cfg.HID.Setup {
		if err := hid.ConfigureGadget(cfg.HID.Gadget, logger.Component(log, "gadget")); err != nil {
			return fmt.Errorf("configure gadget: %w", err)
		}
	}

	restarter, err := system.NewRestarter(cfg.Restart.Method, logger.Component(log, "system"))
	if err != nil {
		return err
	}

	led, button := openPins(cfg.GPIO, log)
	ind := indicator.New(led, indicator.DoubleBlinkDisconnected, time.Now())

	if device.PairingModeRequested {
		return runPairing(ctx, cfg, st, device, ind, restarter, log)
	}
	return runRelay(ctx, cfg, st, device, ind, button, restarter, log)
}

// runPairing consumes the one-shot request flag and serves the wired console.
func runPairing(ctx context.Context, cfg *config.Config, st store.Store, device store.DeviceConfig, ind *indicator.Indicator, restarter system.Restarter, log *slog.Logger) error {
	device.PairingModeRequested = false
	if err := st.Save(ctx, device); err != nil {
		return fmt.Errorf("clear pairing request: %w", err)
	}

	id, err := system.DeviceID()
	if err != nil {
		return err
	}

	port, err := pairmode.OpenSerial(cfg.Pairing.SerialPort, cfg.Pairing.BaudRate)
	if err != nil {
		return err
	}
	defer port.Close()

	session := &pairmode.Session{
		Device:    device,
		Store:     st,
		DeviceID:  id,
		Restarter: restarter,
		Logger:    logger.Component(log, "pairmode"),
	}
	log.Info("entering pairing mode", slog.String("port", cfg.Pairing.SerialPort))
	if err := session.Serve(ctx, port, ind); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func runRelay(ctx context.Context, cfg *config.Config, st store.Store, device store.DeviceConfig, ind *indicator.Indicator, button auth.Presence, restarter system.Restarter, log *slog.Logger) error {
	gadget, err := hid.OpenGadget(cfg.HID.Device, cfg.HID.Breaker, logger.Component(log, "gadget"))
	if err != nil {
		return fmt.Errorf("open hid gadget: %w", err)
	}
	defer gadget.Close()

	m := &auth.Machine{
		Device:    device,
		Store:     st,
		Indicator: ind,
		Presence:  button,
		Restarter: restarter,
		Logger:    logger.Component(log, "auth"),
	}

	var transport relay.Transport = discard{}
	var peripheral *ble.Peripheral
	if cfg.BLE.Enabled {
		peripheral = ble.NewPeripheral(logger.Component(log, "ble"))
		transport = peripheral
	}

	r := relay.New(transport, hid.NewEncoder(gadget, logger.Component(log, "hid")), m, ind, logger.Component(log, "relay"))
	r.Tick = cfg.Loop.Tick

	if peripheral != nil {
		if err := peripheral.Start(cfg.BLE.LocalName, r); err != nil {
			return err
		}
		defer peripheral.Stop()
	} else {
		log.Warn("ble disabled, no links will connect")
	}

	log.Info("relay starting",
		slog.String("security_level", string(device.SecurityLevel)),
		slog.Int("paired_browsers", len(device.PairedBrowsers)))
	return r.Run(ctx)
}

// discard stands in for the radio when BLE is disabled.
type discard struct{}

func (discard) Notify(frame []byte) error {
	slog.Debug("outbound frame dropped", slog.String("frame", protocol.EncodeToString(frame)))
	return nil
}

func openPins(cfg config.GPIOConfig, log *slog.Logger) (indicator.Output, auth.Presence) {
	var (
		led    indicator.Output = gpio.Dark{}
		button auth.Presence    = gpio.Released{}
	)
	if cfg.LED == "" && cfg.Button == "" {
		return led, button
	}
	if err := gpio.Init(); err != nil {
		log.Warn("gpio unavailable", slog.Any("error", err))
		return led, button
	}
	if cfg.LED != "" {
		if l, err := gpio.OpenLED(cfg.LED); err != nil {
			log.Warn("led unavailable", slog.String("pin", cfg.LED), slog.Any("error", err))
		} else {
			led = l
		}
	}
	if cfg.Button != "" {
		if b, err := gpio.OpenButton(cfg.Button, cfg.ButtonActiveLow); err != nil {
			log.Warn("button unavailable", slog.String("pin", cfg.Button), slog.Any("error", err))
		} else {
			button = b
		}
	}
	return led, button
}
