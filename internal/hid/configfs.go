package hid

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// GadgetConfig describes the composite USB gadget exposed to the host: one
// HID function carrying ReportDescriptor and, optionally, a CDC-ACM serial
// function used by pairing mode.
type GadgetConfig struct {
	Root         string `yaml:"configfs_root"`
	Name         string `yaml:"name"`
	UDCDir       string `yaml:"udc_dir"`
	VendorID     uint16 `yaml:"vendor_id"`
	ProductID    uint16 `yaml:"product_id"`
	Manufacturer string `yaml:"manufacturer"`
	Product      string `yaml:"product"`
	Serial       string `yaml:"serial"`
	ACM          bool   `yaml:"acm"`
}

func hex16(v uint16) string {
	return "0x" + strconv.FormatUint(uint64(v), 16)
}

// ConfigureGadget creates the gadget under configfs and binds it to the first
// available UDC. Existing entries with matching contents are left alone, so
// it is safe to run on every start.
func ConfigureGadget(cfg GadgetConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	base := filepath.Join(cfg.Root, cfg.Name)
	hidFn := filepath.Join(base, "functions", "hid.usb0")
	acmFn := filepath.Join(base, "functions", "acm.usb0")
	config := filepath.Join(base, "configs", "c.1")

	dirs := []string{
		base,
		filepath.Join(base, "strings", "0x409"),
		filepath.Join(config, "strings", "0x409"),
		hidFn,
	}
	if cfg.ACM {
		dirs = append(dirs, acmFn)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}

	files := []struct {
		path     string
		contents []byte
	}{
		{filepath.Join(base, "idVendor"), []byte(hex16(cfg.VendorID))},
		{filepath.Join(base, "idProduct"), []byte(hex16(cfg.ProductID))},
		{filepath.Join(base, "bcdDevice"), []byte("0x0100")},
		{filepath.Join(base, "bcdUSB"), []byte("0x0200")},
		{filepath.Join(base, "strings", "0x409", "manufacturer"), []byte(cfg.Manufacturer)},
		{filepath.Join(base, "strings", "0x409", "product"), []byte(cfg.Product)},
		{filepath.Join(base, "strings", "0x409", "serialnumber"), []byte(cfg.Serial)},
		{filepath.Join(config, "strings", "0x409", "configuration"), []byte("RelayKVM")},
		{filepath.Join(config, "MaxPower"), []byte("250")},
		{filepath.Join(hidFn, "protocol"), []byte("0")},
		{filepath.Join(hidFn, "subclass"), []byte("0")},
		{filepath.Join(hidFn, "report_length"), []byte(strconv.Itoa(MaxReportSize))},
		{filepath.Join(hidFn, "report_desc"), ReportDescriptor},
	}
	for _, f := range files {
		if err := writeIfChanged(f.path, f.contents); err != nil {
			return err
		}
	}

	links := map[string]string{hidFn: filepath.Join(config, "hid.usb0")}
	if cfg.ACM {
		links[acmFn] = filepath.Join(config, "acm.usb0")
	}
	for source, target := range links {
		if _, err := os.Lstat(target); err == nil {
			continue
		}
		logger.Debug("creating symlink", slog.String("source", source), slog.String("target", target))
		if err := os.Symlink(source, target); err != nil {
			return fmt.Errorf("link %s: %w", target, err)
		}
	}

	return bindUDC(filepath.Join(base, "UDC"), cfg.UDCDir, logger)
}

func writeIfChanged(path string, contents []byte) error {
	current, err := os.ReadFile(path)
	if err == nil && bytes.Equal(bytes.TrimRight(current, "\n"), contents) {
		return nil
	}
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var errNoUDC = errors.New("no USB device controller found")

func bindUDC(udcFile, udcDir string, logger *slog.Logger) error {
	matches, err := filepath.Glob(filepath.Join(udcDir, "*"))
	if err != nil {
		return fmt.Errorf("list %s: %w", udcDir, err)
	}
	if len(matches) == 0 {
		return errNoUDC
	}
	udc := filepath.Base(matches[0])

	current, err := os.ReadFile(udcFile)
	if err == nil && strings.TrimSpace(string(current)) == udc {
		return nil
	}
	logger.Info("binding gadget", slog.String("udc", udc))
	return writeIfChanged(udcFile, []byte(udc))
}
