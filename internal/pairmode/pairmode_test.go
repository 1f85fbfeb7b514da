package pairmode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/relaykvm/internal/indicator"
	"github.com/seagrayinc/relaykvm/internal/store"
	"github.com/seagrayinc/relaykvm/internal/system"
)

const keyHex = "ffeeddccbbaa99887766554433221100ffeeddccbbaa99887766554433221100"

type memStore struct {
	saved []store.DeviceConfig
	err   error
}

func (s *memStore) Load(context.Context) (store.DeviceConfig, error) { return store.Default(), nil }
func (s *memStore) Save(_ context.Context, c store.DeviceConfig) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, c.Clone())
	return nil
}
func (s *memStore) Close() error { return nil }

func newSession() (*Session, *memStore, *int) {
	st := &memStore{}
	restarts := new(int)
	return &Session{
		Device:    store.Default(),
		Store:     st,
		DeviceID:  []byte{0xde, 0xad, 0xbe, 0xef},
		Restarter: system.RestartFunc(func() error { *restarts++; return nil }),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, st, restarts
}

func TestHandle(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"ID?", []string{"ID:deadbeef"}},
		{"PAIR:browser-1234567:" + keyHex, []string{"OK:paired:browser-"}},
		{"PAIR:b1:" + keyHex, []string{"OK:paired:b1"}},
		{"PAIR:b1:abcd", []string{"ERROR:invalid_key_length:4"}},
		{"PAIR:b1:" + strings.Repeat("zz", 32), []string{"ERROR:invalid_key_format"}},
		{"PAIR:" + keyHex, []string{"ERROR:invalid_pair_format"}},
		{"LEVEL:paired_only", []string{"OK:security_level:paired_only"}},
		{"LEVEL:open", []string{"OK:security_level:open"}},
		{"LEVEL:closed", []string{"ERROR:invalid_level:closed"}},
		{"STATUS", []string{"STATUS:mode:pairing", "STATUS:security_level:open", "STATUS:paired_browsers:0"}},
		{"REBOOT", []string{"ERROR:unknown_command:REBOOT"}},
		{"FOO:bar", []string{"ERROR:unknown_command:FOO"}},
		{"  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s, _, _ := newSession()
			got, done := s.Handle(context.Background(), tt.line)
			assert.Equal(t, tt.want, got)
			assert.False(t, done)
		})
	}
}

func TestPairPersists(t *testing.T) {
	s, st, _ := newSession()
	s.Handle(context.Background(), "PAIR:b1:"+keyHex)
	s.Handle(context.Background(), "PAIR:b2:"+keyHex+"\r")
	s.Handle(context.Background(), "LEVEL:paired_only")

	require.Len(t, st.saved, 3)
	last := st.saved[2]
	assert.Equal(t, store.PairedOnly, last.SecurityLevel)
	assert.Equal(t, []string{"b1", "b2"}, last.BrowserIDs())
	assert.Equal(t, keyHex, last.PairedBrowsers["b2"].String())

	got, _ := s.Handle(context.Background(), "STATUS")
	assert.Equal(t, "STATUS:paired_browsers:2", got[2])
}

func TestSaveFailureReported(t *testing.T) {
	s, st, _ := newSession()
	st.err = errors.New("disk full")
	got, _ := s.Handle(context.Background(), "PAIR:b1:"+keyHex)
	assert.Equal(t, []string{"ERROR:save_failed"}, got)
	assert.Empty(t, s.Device.PairedBrowsers)
}

func TestDone(t *testing.T) {
	s, _, _ := newSession()
	got, done := s.Handle(context.Background(), "DONE")
	assert.Equal(t, []string{"OK:rebooting"}, got)
	assert.True(t, done)
}

type console struct {
	in  io.Reader
	out bytes.Buffer
}

func (c *console) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *console) Write(p []byte) (int, error) { return c.out.Write(p) }

func TestServe(t *testing.T) {
	s, st, restarts := newSession()
	c := &console{in: strings.NewReader("ID?\nPAIR:b1:" + keyHex + "\nDONE\nSTATUS\n")}
	ind := indicator.New(nil, indicator.Off, time.Now())

	err := s.Serve(context.Background(), c, ind)
	require.NoError(t, err)
	assert.Equal(t, "ID:deadbeef\nOK:paired:b1\nOK:rebooting\n", c.out.String())
	assert.Equal(t, 1, *restarts)
	assert.Len(t, st.saved, 1)
	assert.Equal(t, indicator.SlowToggleCommand, ind.Mode())
}

func TestServeEOF(t *testing.T) {
	s, _, restarts := newSession()
	c := &console{in: strings.NewReader("STATUS\n")}
	err := s.Serve(context.Background(), c, nil)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, *restarts)
	assert.Contains(t, c.out.String(), "STATUS:mode:pairing")
}

func TestServeRestartFailureStopsReader(t *testing.T) {
	s, _, _ := newSession()
	s.Restarter = system.RestartFunc(func() error { return errors.New("operation not permitted") })
	c := &console{in: strings.NewReader("DONE\nSTATUS\nSTATUS\n")}

	before := runtime.NumGoroutine()
	err := s.Serve(context.Background(), c, nil)
	assert.ErrorContains(t, err, "operation not permitted")
	assert.Equal(t, "OK:rebooting\n", c.out.String())

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
}
