// Package ble exposes the relay as a Nordic UART Service peripheral.
package ble

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// ChunkSize is the notification payload that fits the default ATT MTU.
const ChunkSize = 20

// Handler receives link events and inbound bytes. The relay implements it.
type Handler interface {
	Deliver(p []byte)
	LinkUp(id string)
	LinkDown(id string)
}

// Peripheral advertises the NUS service and forwards RX writes to a Handler.
type Peripheral struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	tx      bluetooth.Characteristic
	logger  *slog.Logger

	mu sync.Mutex
}

// NewPeripheral returns a peripheral on the default adapter. Nothing is
// advertised until Start.
func NewPeripheral(logger *slog.Logger) *Peripheral {
	if logger == nil {
		logger = slog.Default()
	}
	return &Peripheral{adapter: bluetooth.DefaultAdapter, logger: logger}
}

// Start enables the adapter, registers the UART service and begins
// advertising under name.
func (p *Peripheral) Start(name string, h Handler) error {
	logger := p.logger
	if err := p.adapter.Enable(); err != nil {
		return fmt.Errorf("enable BLE stack: %w", err)
	}

	p.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		id := device.Address.String()
		if connected {
			logger.Info("central connected", slog.String("link", id))
			h.LinkUp(id)
			return
		}
		logger.Info("central disconnected", slog.String("link", id))
		h.LinkDown(id)
	})

	var rx bluetooth.Characteristic
	err := p.adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.ServiceUUIDNordicUART,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &rx,
				UUID:   bluetooth.CharacteristicUUIDUARTRX,
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(_ bluetooth.Connection, _ int, value []byte) {
					h.Deliver(value)
				},
			},
			{
				Handle: &p.tx,
				UUID:   bluetooth.CharacteristicUUIDUARTTX,
				Flags:  bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicReadPermission,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("add UART service: %w", err)
	}

	p.adv = p.adapter.DefaultAdvertisement()
	if err := p.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.ServiceUUIDNordicUART},
	}); err != nil {
		return fmt.Errorf("configure advertisement: %w", err)
	}
	if err := p.adv.Start(); err != nil {
		return fmt.Errorf("start advertisement: %w", err)
	}
	logger.Info("advertising", slog.String("name", name))
	return nil
}

// Notify sends frame on the TX characteristic.
func (p *Peripheral) Notify(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return writeChunked(&p.tx, frame, ChunkSize)
}

// Stop ends advertising.
func (p *Peripheral) Stop() error {
	if p.adv == nil {
		return nil
	}
	return p.adv.Stop()
}

type chunkWriter interface {
	Write(p []byte) (int, error)
}

// writeChunked splits b into notifications of at most size bytes.
func writeChunked(w chunkWriter, b []byte, size int) error {
	for len(b) > 0 {
		n := min(size, len(b))
		if _, err := w.Write(b[:n]); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		b = b[n:]
	}
	return nil
}
