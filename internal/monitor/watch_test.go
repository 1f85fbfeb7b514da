package monitor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/relaykvm/internal/hid"
)

type fakeReader struct {
	reports [][]byte
	closed  bool
}

var errDrained = errors.New("drained")

func (f *fakeReader) ReadReport() ([]byte, error) {
	if len(f.reports) == 0 {
		return nil, errDrained
	}
	r := f.reports[0]
	f.reports = f.reports[1:]
	return r, nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestWatch(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := &fakeReader{reports: [][]byte{
		hid.KeyboardReport{Keys: [6]byte{0x04}}.Report().Bytes(),
		{0x7f, 0x00},
		hid.ConsumerReport{Usage: 0xe9}.Report().Bytes(),
	}}

	n, err := Watch(context.Background(), r, logger)
	require.ErrorIs(t, err, errDrained)
	assert.Equal(t, 3, n)
	assert.Contains(t, buf.String(), "type=keyboard")
	assert.Contains(t, buf.String(), "type=consumer")
	assert.Contains(t, buf.String(), "undecodable report")
}

func TestWatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := Watch(ctx, &fakeReader{}, slog.Default())
	assert.NoError(t, err)
	assert.Zero(t, n)
}
