// go-w5500
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-w5500.
//
// go-w5500 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-w5500 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-w5500; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package spi

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/ZaparooProject/go-w5500"
	virt "github.com/ZaparooProject/go-w5500/internal/testing"
	"github.com/ZaparooProject/go-w5500/register"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// MockSPIConn implements spi.Conn on top of the virtual chip.
type MockSPIConn struct {
	sim    *virt.VirtualW5500
	closed bool
}

// Tx implements conn.Conn.
func (m *MockSPIConn) Tx(w, r []byte) error {
	if m.closed {
		return errors.New("connection closed")
	}
	return m.sim.Tx(w, r)
}

// Duplex implements conn.Conn.
func (*MockSPIConn) Duplex() conn.Duplex {
	return conn.Full
}

func (*MockSPIConn) String() string {
	return "mock-spi-conn"
}

// TxPackets implements spi.Conn.
func (m *MockSPIConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := m.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// MockSPIPort implements spi.PortCloser.
type MockSPIPort struct {
	conn      *MockSPIConn
	frequency physic.Frequency
	mode      spi.Mode
	closed    bool
}

func newMockSPIPort(sim *virt.VirtualW5500) *MockSPIPort {
	return &MockSPIPort{conn: &MockSPIConn{sim: sim}}
}

// Connect implements spi.Port.
func (p *MockSPIPort) Connect(f physic.Frequency, m spi.Mode, _ int) (spi.Conn, error) {
	p.frequency = f
	p.mode = m
	return p.conn, nil
}

// Close implements io.Closer.
func (p *MockSPIPort) Close() error {
	p.closed = true
	p.conn.closed = true
	return nil
}

func (*MockSPIPort) String() string {
	return "mock://spi"
}

// LimitSpeed implements spi.Port.
func (*MockSPIPort) LimitSpeed(_ physic.Frequency) error {
	return nil
}

var (
	_ spi.Conn       = (*MockSPIConn)(nil)
	_ spi.PortCloser = (*MockSPIPort)(nil)
)

func newTestTransport(t *testing.T, sim *virt.VirtualW5500, cs gpio.PinOut, opts ...Option) (*Transport, *MockSPIPort) {
	t.Helper()
	cfg := &config{frequency: DefaultFrequency, mode: spi.Mode0, traceSize: defaultTraceSize}
	for _, opt := range opts {
		require.NoError(t, opt(cfg))
	}
	port := newMockSPIPort(sim)
	transport, err := newTransport(port, "mock://spi", cfg, cs)
	require.NoError(t, err)
	return transport, port
}

func TestTransport_InitializesChip(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualW5500()
	transport, port := newTestTransport(t, sim, nil, WithFrequency(20*physic.MegaHertz))
	assert.Equal(t, 20*physic.MegaHertz, port.frequency)
	assert.Equal(t, spi.Mode0, port.mode)

	u, err := w5500.New(transport, w5500.WithResetPollInterval(0))
	require.NoError(t, err)
	mac, _ := w5500.ParseMAC("02:00:00:00:00:01")
	_, err = u.Initialize(w5500.NetworkConfig{
		MAC: mac,
		IP:  mustAddr(t, "192.168.1.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{192, 168, 1, 50}, sim.Common(register.IPAddress, 4))

	require.NoError(t, transport.Close())
	assert.True(t, port.closed)
}

func TestTransport_GPIOChipSelect(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualW5500()
	pin := &gpiotest.Pin{N: "GPIO8", Num: 8}
	transport, _ := newTestTransport(t, sim, pin)
	assert.Equal(t, gpio.High, pin.L)

	var version [1]byte
	require.NoError(t, transport.ReadFrame(register.CommonBlock, register.Version, version[:]))
	assert.Equal(t, register.ChipVersion, version[0])
	assert.Equal(t, gpio.High, pin.L)
}

func TestTransport_ErrorCarriesTrace(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualW5500()
	transport, _ := newTestTransport(t, sim, nil, WithTraceSize(2))

	require.NoError(t, transport.WriteFrame(register.CommonBlock, register.Gateway, []byte{10, 0, 0, 1}))
	require.NoError(t, transport.WriteFrame(register.CommonBlock, register.SubnetMask, []byte{255, 255, 255, 0}))
	sim.FailAfter(0, nil)

	var buf [4]byte
	err := transport.ReadFrame(register.CommonBlock, register.IPAddress, buf[:])
	require.ErrorIs(t, err, virt.ErrInjected)

	var traceErr *TraceError
	require.ErrorAs(t, err, &traceErr)
	require.Len(t, traceErr.Frames, 2)
	assert.Contains(t, traceErr.Frames[0], "WR block 0x00 offset 0x0005 len 4: FF FF FF 00")
	assert.Contains(t, traceErr.Frames[1], "RD block 0x00 offset 0x000F")
	assert.Contains(t, traceErr.Trace(), virt.ErrInjected.Error())
	assert.Contains(t, err.Error(), "mock://spi")
}

func TestTransport_NoTrace(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualW5500()
	transport, _ := newTestTransport(t, sim, nil, WithTraceSize(0))
	sim.FailAfter(0, nil)

	err := transport.WriteFrame(register.CommonBlock, register.Mode, []byte{0})
	require.ErrorIs(t, err, virt.ErrInjected)
	var traceErr *TraceError
	assert.False(t, errors.As(err, &traceErr))
}

func TestTraceBuffer_Wraps(t *testing.T) {
	t.Parallel()
	b := newTraceBuffer(3)
	for i := range 5 {
		b.record(true, 0, uint16(i), []byte{byte(i)}, nil)
	}
	entries := b.snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, []uint16{2, 3, 4}, []uint16{entries[0].offset, entries[1].offset, entries[2].offset})

	long := make([]byte, 40)
	b.record(false, 1, 0, long, nil)
	last := b.snapshot()[2]
	assert.Len(t, last.data, maxTraceData)
	assert.Contains(t, last.String(), "len 40")
	assert.Contains(t, last.String(), "...")
}

func TestOptions(t *testing.T) {
	t.Parallel()
	cfg := &config{}
	require.Error(t, WithFrequency(0)(cfg))
	require.Error(t, WithMode(spi.Mode1)(cfg))
	require.NoError(t, WithMode(spi.Mode3)(cfg))
	assert.Equal(t, spi.Mode3, cfg.mode)
	require.Error(t, WithTraceSize(-1)(cfg))
	require.NoError(t, WithChipSelectPin("GPIO25")(cfg))
	assert.Equal(t, "GPIO25", cfg.csPin)
}

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	addr, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return addr
}
