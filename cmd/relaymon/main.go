// Command relaymon runs on the host a relay is plugged into. "list" shows the
// matching USB interfaces; "watch" prints every HID report the relay emits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/seagrayinc/relaykvm/internal/monitor"
)

func main() {
	vid := flag.String("vid", fmt.Sprintf("%04x", monitor.DefaultVID), "USB vendor ID (hex)")
	pid := flag.String("pid", fmt.Sprintf("%04x", monitor.DefaultPID), "USB product ID (hex)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-vid hex] [-pid hex] list|watch\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	vendorID, err := parseID(*vid)
	if err != nil {
		fatal(err)
	}
	productID, err := parseID(*pid)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	switch flag.Arg(0) {
	case "list":
		err = list(vendorID, productID)
	case "watch":
		err = watch(ctx, vendorID, productID)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func parseID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("bad usb id %q: %w", s, err)
	}
	return uint16(v), nil
}

func list(vendorID, productID uint16) error {
	usbInfos, err := monitor.Enumerate(vendorID, productID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "usb: %v\n", err)
	}
	for _, i := range usbInfos {
		fmt.Printf("usb %04x:%04x if=%d %s %s serial=%s path=%s\n",
			i.VendorID, i.ProductID, i.Interface, i.Manufacturer, i.Product, i.Serial, i.Path)
	}

	hidInfos, err := monitor.ListHID()
	if err != nil {
		return err
	}
	for _, i := range hidInfos {
		if i.VendorID != vendorID || i.ProductID != productID {
			continue
		}
		fmt.Printf("hid %04x:%04x in=%d %s %s path=%s\n",
			i.VendorID, i.ProductID, i.InputLength, i.Manufacturer, i.Product, i.Path)
	}
	return nil
}

func watch(ctx context.Context, vendorID, productID uint16) error {
	r, err := monitor.OpenHID(vendorID, productID)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		r.Close()
	}()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	n, err := monitor.Watch(ctx, r, logger)
	logger.Info("stopped", slog.Int("reports", n))
	return err
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "relaymon: %v\n", err)
	os.Exit(1)
}
