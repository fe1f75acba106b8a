// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package polling

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/ZaparooProject/go-w5500"
	virt "github.com/ZaparooProject/go-w5500/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.SleepDetection.Enabled = false
	return cfg
}

func newTestSession(t *testing.T, cfg *Config) (*Session, *virt.VirtualW5500) {
	t.Helper()
	chip := virt.NewVirtualW5500()
	bus := w5500.NewFourWire(chip, chip)
	sock, err := w5500.NewSocket(0)
	require.NoError(t, err)
	udp, err := w5500.OpenUDP(bus, sock, 7000, nil)
	require.NoError(t, err)
	session, err := NewSession(bus, udp, cfg)
	require.NoError(t, err)
	return session, chip
}

type fakeLink struct {
	err    error
	states []bool
	calls  int
}

func (f *fakeLink) LinkUp() (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	up := f.states[min(f.calls, len(f.states)-1)]
	f.calls++
	return up, nil
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	require.NoError(t, DefaultConfig().Validate())

	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll interval")
	assert.Contains(t, err.Error(), "buffer size")
	assert.Contains(t, err.Error(), "max batch")

	_, err = NewSession(nil, nil, cfg)
	require.Error(t, err)
}

func TestSleepDetection(t *testing.T) {
	t.Parallel()
	cfg := DefaultSleepDetectionConfig()
	assert.False(t, cfg.DetectSleep(time.Second, 10*time.Millisecond))
	assert.True(t, cfg.DetectSleep(3*time.Second, 10*time.Millisecond))

	cfg.Enabled = false
	assert.False(t, cfg.DetectSleep(time.Hour, 10*time.Millisecond))
}

func TestSession_DeliversDatagrams(t *testing.T) {
	t.Parallel()
	session, chip := newTestSession(t, testConfig())
	src := netip.MustParseAddrPort("10.0.0.2:5000")
	require.NoError(t, chip.InjectDatagram(0, src, []byte("one")))
	require.NoError(t, chip.InjectDatagram(0, src, []byte("two")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []Datagram
	session.OnDatagram = func(d Datagram) error {
		got = append(got, d)
		if len(got) == 2 {
			cancel()
		}
		return nil
	}

	err := session.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("one"), got[0].Payload)
	assert.Equal(t, []byte("two"), got[1].Payload)
	assert.Equal(t, src, got[0].Source)

	stats := session.Stats()
	assert.Equal(t, uint64(2), stats.Datagrams)
	assert.Equal(t, uint64(6), stats.Bytes)
}

func TestSession_TruncatesToBufferSize(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.BufferSize = 4
	session, chip := newTestSession(t, cfg)
	require.NoError(t, chip.InjectDatagram(0, netip.MustParseAddrPort("10.0.0.2:5000"), []byte("truncated")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var payload []byte
	session.OnDatagram = func(d Datagram) error {
		payload = d.Payload
		cancel()
		return nil
	}
	_ = session.Run(ctx)
	assert.Equal(t, []byte("trun"), payload)
}

func TestSession_CallbackErrorEndsRun(t *testing.T) {
	t.Parallel()
	session, chip := newTestSession(t, testConfig())
	require.NoError(t, chip.InjectDatagram(0, netip.MustParseAddrPort("10.0.0.2:5000"), []byte{1}))

	cbErr := errors.New("handler failed")
	session.OnDatagram = func(Datagram) error { return cbErr }

	err := session.Run(context.Background())
	require.ErrorIs(t, err, cbErr)
}

func TestSession_CallbackPanic(t *testing.T) {
	t.Parallel()
	session, chip := newTestSession(t, testConfig())
	require.NoError(t, chip.InjectDatagram(0, netip.MustParseAddrPort("10.0.0.2:5000"), []byte{1}))
	session.OnDatagram = func(Datagram) error { panic("boom") }

	err := session.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: boom")
}

func TestSession_BusErrorEndsRun(t *testing.T) {
	t.Parallel()
	session, chip := newTestSession(t, testConfig())
	chip.FailAfter(3, nil)

	err := session.Run(context.Background())
	require.ErrorIs(t, err, virt.ErrInjected)
	assert.Contains(t, err.Error(), "receive failed")
}

func TestSession_LinkChanges(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.LinkCheckInterval = time.Millisecond
	session, _ := newTestSession(t, cfg)
	link := &fakeLink{states: []bool{true, true, false}}
	session.SetLinkMonitor(link)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var changes []LinkState
	session.OnLinkChange = func(s LinkState) {
		changes = append(changes, s)
		if s == LinkDown {
			cancel()
		}
	}

	_ = session.Run(ctx)
	assert.Equal(t, []LinkState{LinkUp, LinkDown}, changes)
	assert.Equal(t, LinkDown, session.Stats().Link)
}

func TestSession_LinkErrorEndsRun(t *testing.T) {
	t.Parallel()
	session, _ := newTestSession(t, testConfig())
	linkErr := errors.New("phy read failed")
	session.SetLinkMonitor(&fakeLink{err: linkErr})

	err := session.Run(context.Background())
	require.ErrorIs(t, err, linkErr)
}

func TestSession_Send(t *testing.T) {
	t.Parallel()
	session, chip := newTestSession(t, testConfig())

	dst := netip.MustParseAddrPort("10.0.0.9:6000")
	require.NoError(t, session.Send(context.Background(), dst, []byte("reply")))

	sent := chip.Sent(0)
	require.Len(t, sent, 1)
	assert.Equal(t, dst, sent[0].Addr)
	assert.Equal(t, uint64(1), session.Stats().Sent)
}

func TestSession_SendWhileRunning(t *testing.T) {
	t.Parallel()
	session, chip := newTestSession(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	dst := netip.MustParseAddrPort("10.0.0.9:6000")
	for range 20 {
		require.NoError(t, session.Send(context.Background(), dst, []byte{1}))
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, chip.Sent(0), 20)
}

func TestSession_CloseStopsRun(t *testing.T) {
	t.Parallel()
	session, _ := newTestSession(t, testConfig())

	done := make(chan error, 1)
	go func() { done <- session.Run(context.Background()) }()
	require.NoError(t, session.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	err := session.Send(context.Background(), netip.MustParseAddrPort("10.0.0.9:1"), nil)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_PauseResume(t *testing.T) {
	t.Parallel()
	session, chip := newTestSession(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	received := make(chan struct{}, 1)
	session.OnDatagram = func(Datagram) error {
		received <- struct{}{}
		return nil
	}

	session.Pause()
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	require.NoError(t, chip.InjectDatagram(0, netip.MustParseAddrPort("10.0.0.2:1"), []byte{1}))
	select {
	case <-received:
		t.Fatal("datagram delivered while paused")
	case <-time.After(20 * time.Millisecond):
	}

	session.Resume()
	select {
	case <-received:
	case <-ctx.Done():
		t.Fatal("datagram not delivered after resume")
	}
	cancel()
	<-done
}

func TestSession_SleepDetected(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.SleepDetection = SleepDetectionConfig{Enabled: true, TimeDiscontinuityThreshold: time.Millisecond}
	session, _ := newTestSession(t, cfg)

	var gaps []time.Duration
	session.OnSleepDetected = func(elapsed time.Duration) { gaps = append(gaps, elapsed) }

	session.lastPoll = time.Now().Add(-time.Hour)
	require.NoError(t, session.pollOnce())
	require.Len(t, gaps, 1)
	assert.GreaterOrEqual(t, gaps[0], time.Hour)
}

func TestLinkState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "up", LinkUp.String())
	assert.Equal(t, "down", LinkDown.String())
	assert.Equal(t, "unknown", LinkUnknown.String())
}
