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

package w5500

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/netip"
	"runtime"
	"time"

	"github.com/ZaparooProject/go-w5500/register"
)

// DefaultBufferSize is the per-socket buffer size the chip starts with.
const DefaultBufferSize = 2048

// DefaultSendRetries bounds how many times Send polls for the send-complete
// interrupt before giving up.
const DefaultSendRetries = 1000

// UDPConfig configures a UDP socket.
type UDPConfig struct {
	// BufferSize is the socket's TX/RX buffer size in bytes. It must match
	// what the chip is configured with (2 KiB after reset).
	BufferSize uint16
	// SendRetries is how many times Send polls the send-complete interrupt.
	SendRetries int
	// SendPollInterval is the pause between polls. Zero yields the
	// processor instead of sleeping.
	SendPollInterval time.Duration
}

// DefaultUDPConfig returns the configuration matching a freshly reset chip.
func DefaultUDPConfig() *UDPConfig {
	return &UDPConfig{
		BufferSize:  DefaultBufferSize,
		SendRetries: DefaultSendRetries,
	}
}

func (c *UDPConfig) validate() error {
	switch c.BufferSize {
	case 1024, 2048, 4096, 8192, 16384:
	default:
		return fmt.Errorf("%w: %d bytes", ErrInvalidBufferSize, c.BufferSize)
	}
	if c.SendRetries <= 0 {
		return fmt.Errorf("send retries must be positive, got %d", c.SendRetries)
	}
	return nil
}

// UDPSocket runs the datagram protocol over one hardware socket. It keeps
// no pointer state: every call reads the chip's pointers afresh, because
// the chip advances them on its own as packets arrive and leave.
type UDPSocket struct {
	config UDPConfig
	socket Socket
}

// NewUDPSocket binds the UDP protocol to socket without touching the chip.
// A nil cfg uses DefaultUDPConfig.
func NewUDPSocket(socket Socket, cfg *UDPConfig) (*UDPSocket, error) {
	if cfg == nil {
		cfg = DefaultUDPConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &UDPSocket{socket: socket, config: *cfg}, nil
}

// OpenUDP puts socket into UDP mode bound to localPort.
func OpenUDP(bus Bus, socket Socket, localPort uint16, cfg *UDPConfig) (*UDPSocket, error) {
	udp, err := NewUDPSocket(socket, cfg)
	if err != nil {
		return nil, err
	}
	if err := socket.ResetInterrupt(bus, register.InterruptAll); err != nil {
		return nil, fmt.Errorf("open %s: %w", socket, err)
	}
	if err := socket.SetSourcePort(bus, localPort); err != nil {
		return nil, fmt.Errorf("open %s: %w", socket, err)
	}
	if err := socket.SetMode(bus, register.ProtocolUDP); err != nil {
		return nil, fmt.Errorf("open %s: %w", socket, err)
	}
	if err := socket.Command(bus, register.CommandOpen); err != nil {
		return nil, fmt.Errorf("open %s: %w", socket, err)
	}
	Debugf("W5500 %s: UDP open on port %d", socket, localPort)
	return udp, nil
}

// Socket returns the underlying hardware socket.
func (u *UDPSocket) Socket() Socket {
	return u.socket
}

// Send transmits payload as one datagram to dst and waits for the chip to
// report it sent.
//
// The destination registers, the buffer contents and the write pointer are
// separate frames. A bus failure between them can leave the chip holding a
// new destination with stale data; nothing is rolled back.
func (u *UDPSocket) Send(ctx context.Context, bus Bus, dst netip.AddrPort, payload []byte) error {
	addr := dst.Addr().Unmap()
	if !addr.Is4() {
		return fmt.Errorf("%w: %s is not IPv4", ErrInvalidAddress, dst)
	}
	if len(payload) > int(u.config.BufferSize) {
		return fmt.Errorf("%w: %d bytes exceeds %d byte socket buffer",
			ErrDataTooLarge, len(payload), u.config.BufferSize)
	}

	s := u.socket
	pointer, err := s.TxWritePointer(bus)
	if err != nil {
		return err
	}
	if err := s.SetDestinationIP(bus, addr); err != nil {
		return err
	}
	if err := s.SetDestinationPort(bus, dst.Port()); err != nil {
		return err
	}
	if err := writeWrapped(bus, s.TxBlock(), pointer, u.config.BufferSize, payload); err != nil {
		return err
	}
	// Pointer arithmetic wraps at 65536, independent of the buffer size
	if err := s.SetTxWritePointer(bus, pointer+uint16(len(payload))); err != nil {
		return err
	}
	if err := s.Command(bus, register.CommandSend); err != nil {
		return err
	}
	return u.waitSendComplete(ctx, bus)
}

func (u *UDPSocket) waitSendComplete(ctx context.Context, bus Bus) error {
	s := u.socket
	for attempt := range u.config.SendRetries {
		if attempt > 0 {
			if err := u.pause(ctx); err != nil {
				return err
			}
		}
		done, err := s.HasInterrupt(bus, register.InterruptSendOK)
		if err != nil {
			return err
		}
		if done {
			return s.ResetInterrupt(bus, register.InterruptSendOK)
		}
	}
	return fmt.Errorf("%w: %s after %d polls", ErrSendTimeout, s, u.config.SendRetries)
}

// pause yields between send-complete polls.
func (u *UDPSocket) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors surface unchanged
	}
	if u.config.SendPollInterval <= 0 {
		runtime.Gosched()
		return nil
	}
	timer := time.NewTimer(u.config.SendPollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context errors surface unchanged
	case <-timer.C:
		return nil
	}
}

// Receive copies the next buffered datagram into buf and returns the number
// of bytes copied and the sender. It returns ErrWouldBlock when no datagram
// is waiting.
//
// A datagram longer than buf is truncated; the remainder is discarded, not
// kept for the next call.
func (u *UDPSocket) Receive(bus Bus, buf []byte) (int, netip.AddrPort, error) {
	s := u.socket
	size, err := s.settledReceiveSize(bus)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	if size < MinReceiveSize {
		return 0, netip.AddrPort{}, ErrWouldBlock
	}

	pointer, err := s.RxReadPointer(bus)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}

	var header [MinReceiveSize]byte
	if err := readWrapped(bus, s.RxBlock(), pointer, u.config.BufferSize, header[:]); err != nil {
		return 0, netip.AddrPort{}, err
	}
	src := netip.AddrPortFrom(netip.AddrFrom4([4]byte(header[0:4])), binary.BigEndian.Uint16(header[4:6]))
	declared := binary.BigEndian.Uint16(header[6:8])

	n := min(len(buf), int(declared))
	payloadPointer := pointer + MinReceiveSize
	if err := readWrapped(bus, s.RxBlock(), payloadPointer, u.config.BufferSize, buf[:n]); err != nil {
		return 0, netip.AddrPort{}, err
	}

	// Always skip the whole datagram, however much of it was copied
	if err := s.SetRxReadPointer(bus, payloadPointer+declared); err != nil {
		return 0, netip.AddrPort{}, err
	}
	if err := s.Command(bus, register.CommandReceive); err != nil {
		return 0, netip.AddrPort{}, err
	}

	if n < int(declared) {
		debugf("W5500 %s: truncated %d byte datagram from %s to %d bytes", s, declared, src, n)
	}
	return n, src, nil
}

// Close closes the socket and clears its pending interrupts.
func (u *UDPSocket) Close(bus Bus) error {
	if err := u.socket.Command(bus, register.CommandClose); err != nil {
		return fmt.Errorf("close %s: %w", u.socket, err)
	}
	if err := u.socket.ResetInterrupt(bus, register.InterruptAll); err != nil {
		return fmt.Errorf("close %s: %w", u.socket, err)
	}
	return nil
}
