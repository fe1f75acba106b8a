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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-w5500/register"
)

const (
	// DefaultResetPolls bounds how many times Initialize reads the mode
	// register waiting for a soft reset to finish.
	DefaultResetPolls = 100
	// DefaultResetPollInterval is the pause between reset polls.
	DefaultResetPollInterval = time.Millisecond
)

// allSockets has one bit per hardware socket.
const allSockets uint8 = 0xFF

// bufferMemoryKiB is the chip's buffer memory per direction, shared by all
// sockets.
const bufferMemoryKiB = 16

// Option configures device initialization.
type Option func(*UninitializedDevice) error

// WithResetPolls sets how many mode register reads Initialize makes before
// reporting ErrResetTimeout.
func WithResetPolls(polls int) Option {
	return func(u *UninitializedDevice) error {
		if polls < 1 {
			return fmt.Errorf("reset polls must be at least 1, got %d", polls)
		}
		u.resetPolls = polls
		return nil
	}
}

// WithResetPollInterval sets the pause between reset polls.
func WithResetPollInterval(interval time.Duration) Option {
	return func(u *UninitializedDevice) error {
		u.resetInterval = interval
		return nil
	}
}

// WithoutReset skips the soft reset, keeping whatever socket state the
// chip already holds.
func WithoutReset() Option {
	return func(u *UninitializedDevice) error {
		u.skipReset = true
		return nil
	}
}

// WithModeFlags sets common mode register bits (wake on LAN, ping block,
// PPPoE, force ARP) after reset. The reset bit is never written.
func WithModeFlags(flags uint8) Option {
	return func(u *UninitializedDevice) error {
		u.modeFlags = flags &^ register.ModeReset
		return nil
	}
}

// WithRetransmission sets the chip's retry timeout, in units of 100us, and
// retry count for ARP and TCP retransmissions.
func WithRetransmission(timeout uint16, count uint8) Option {
	return func(u *UninitializedDevice) error {
		u.retryTime = &timeout
		u.retryCount = &count
		return nil
	}
}

// WithUDPConfig sets the configuration Device.OpenUDP uses when none is
// given.
func WithUDPConfig(cfg *UDPConfig) Option {
	return func(u *UninitializedDevice) error {
		if cfg == nil {
			cfg = DefaultUDPConfig()
		}
		if err := cfg.validate(); err != nil {
			return err
		}
		c := *cfg
		u.udpConfig = &c
		return nil
	}
}

// UninitializedDevice is a chip that has not been reset and configured.
// Initialize consumes it and returns the usable Device.
type UninitializedDevice struct {
	bus           Bus
	udpConfig     *UDPConfig
	retryTime     *uint16
	retryCount    *uint8
	resetPolls    int
	resetInterval time.Duration
	modeFlags     uint8
	skipReset     bool
}

// New wraps bus for initialization.
func New(bus Bus, opts ...Option) (*UninitializedDevice, error) {
	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	u := &UninitializedDevice{
		bus:           bus,
		udpConfig:     DefaultUDPConfig(),
		resetPolls:    DefaultResetPolls,
		resetInterval: DefaultResetPollInterval,
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Initialize soft-resets the chip, checks that it is a W5500 and writes the
// network configuration. A second call returns ErrNotInitialized.
func (u *UninitializedDevice) Initialize(network NetworkConfig) (*Device, error) {
	if u.bus == nil {
		return nil, ErrNotInitialized
	}
	if err := network.validate(); err != nil {
		return nil, err
	}

	bus := u.bus
	if !u.skipReset {
		if err := u.reset(); err != nil {
			return nil, err
		}
	}

	var version [1]byte
	if err := bus.ReadFrame(register.CommonBlock, register.Version, version[:]); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version[0] != register.ChipVersion {
		return nil, &VersionError{Got: version[0], Want: register.ChipVersion}
	}

	if u.modeFlags != 0 {
		if err := bus.WriteFrame(register.CommonBlock, register.Mode, []byte{u.modeFlags}); err != nil {
			return nil, fmt.Errorf("write mode: %w", err)
		}
	}
	if err := u.writeRetransmission(); err != nil {
		return nil, err
	}

	d := &Device{
		bus:       bus,
		udpConfig: *u.udpConfig,
		available: allSockets,
	}
	if err := d.writeNetwork(network); err != nil {
		return nil, err
	}

	u.bus = nil
	Debugf("W5500 initialized: ip %s gateway %s subnet %s mac %s",
		network.IP, network.Gateway, network.Subnet, network.MAC)
	return d, nil
}

func (u *UninitializedDevice) reset() error {
	if err := u.bus.WriteFrame(register.CommonBlock, register.Mode, []byte{register.ModeReset}); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	var mode [1]byte
	for attempt := range u.resetPolls {
		if attempt > 0 && u.resetInterval > 0 {
			time.Sleep(u.resetInterval)
		}
		if err := u.bus.ReadFrame(register.CommonBlock, register.Mode, mode[:]); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		if mode[0]&register.ModeReset == 0 {
			debugf("W5500 reset complete after %d polls", attempt+1)
			return nil
		}
	}
	return fmt.Errorf("%w after %d polls", ErrResetTimeout, u.resetPolls)
}

func (u *UninitializedDevice) writeRetransmission() error {
	if u.retryTime != nil {
		var data [2]byte
		data[0] = byte(*u.retryTime >> 8)
		data[1] = byte(*u.retryTime)
		if err := u.bus.WriteFrame(register.CommonBlock, register.RetryTime, data[:]); err != nil {
			return fmt.Errorf("write retry time: %w", err)
		}
	}
	if u.retryCount != nil {
		if err := u.bus.WriteFrame(register.CommonBlock, register.RetryCount, []byte{*u.retryCount}); err != nil {
			return fmt.Errorf("write retry count: %w", err)
		}
	}
	return nil
}

// Device is an initialized W5500.
//
// Thread Safety: Device is NOT thread-safe. All methods must be called from
// a single goroutine or protected with external synchronization. To share
// the bus between goroutines build the device on a SerializedBus and wrap
// multi-frame operations with its Do method.
type Device struct {
	bus       Bus
	network   NetworkConfig
	udpConfig UDPConfig
	// available has bit i set while socket i can be checked out
	available uint8
	released  bool
	// bufferKiB is the size OpenUDP gave each socket; zero means the
	// socket holds the reset default
	bufferKiB [register.MaxSockets]uint8
}

func (d *Device) writeNetwork(network NetworkConfig) error {
	writes := []struct {
		name   string
		data   []byte
		offset uint16
	}{
		{name: "gateway", offset: register.Gateway, data: network.Gateway.AsSlice()},
		{name: "subnet", offset: register.SubnetMask, data: network.Subnet.AsSlice()},
		{name: "mac", offset: register.MacAddress, data: network.MAC[:]},
		{name: "ip", offset: register.IPAddress, data: network.IP.AsSlice()},
	}
	for _, w := range writes {
		if err := d.bus.WriteFrame(register.CommonBlock, w.offset, w.data); err != nil {
			return fmt.Errorf("write %s: %w", w.name, err)
		}
	}
	d.network = network
	return nil
}

// Bus returns the bus the device talks over.
func (d *Device) Bus() Bus {
	return d.bus
}

// Network returns the configuration last written to the chip.
func (d *Device) Network() NetworkConfig {
	return d.network
}

// SetNetwork rewrites the network configuration. Open sockets keep running.
func (d *Device) SetNetwork(network NetworkConfig) error {
	if d.released {
		return ErrNotInitialized
	}
	if err := network.validate(); err != nil {
		return err
	}
	return d.writeNetwork(network)
}

// LinkUp reports whether the PHY has an Ethernet link.
func (d *Device) LinkUp() (bool, error) {
	if d.released {
		return false, ErrNotInitialized
	}
	var phy [1]byte
	if err := d.bus.ReadFrame(register.CommonBlock, register.PhyConfiguration, phy[:]); err != nil {
		return false, fmt.Errorf("read phy: %w", err)
	}
	return phy[0]&register.PhyLinkUp != 0, nil
}

// TakeSocket checks out the lowest-numbered free socket. The socket stays
// unavailable until ReleaseSocket.
func (d *Device) TakeSocket() (Socket, error) {
	if d.released {
		return Socket{}, ErrNotInitialized
	}
	for i := range uint8(register.MaxSockets) {
		bit := uint8(1) << i
		if d.available&bit != 0 {
			d.available &^= bit
			return Socket{index: i}, nil
		}
	}
	return Socket{}, ErrNoSocketAvailable
}

// ReleaseSocket returns a socket taken with TakeSocket.
func (d *Device) ReleaseSocket(s Socket) error {
	if d.released {
		return ErrNotInitialized
	}
	if s.index >= register.MaxSockets {
		return fmt.Errorf("%w: %d", ErrInvalidSocket, s.index)
	}
	bit := uint8(1) << s.index
	if d.available&bit != 0 {
		return fmt.Errorf("%w: %s", ErrSocketNotCheckedOut, s)
	}
	d.available |= bit
	d.bufferKiB[s.index] = 0
	return nil
}

// AvailableSockets returns how many sockets can still be checked out.
func (d *Device) AvailableSockets() int {
	n := 0
	for a := d.available; a != 0; a &= a - 1 {
		n++
	}
	return n
}

// OpenUDP checks out a socket and opens it for UDP on localPort. A nil cfg
// uses the device's UDP configuration. The socket's chip buffers are sized
// to match cfg before opening.
func (d *Device) OpenUDP(localPort uint16, cfg *UDPConfig) (*UDPSocket, error) {
	if cfg == nil {
		c := d.udpConfig
		cfg = &c
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s, err := d.TakeSocket()
	if err != nil {
		return nil, err
	}
	udp, err := d.openUDP(s, localPort, cfg)
	if err != nil {
		_ = d.ReleaseSocket(s)
		return nil, err
	}
	return udp, nil
}

func (d *Device) openUDP(s Socket, localPort uint16, cfg *UDPConfig) (*UDPSocket, error) {
	kib := uint8(cfg.BufferSize / 1024)
	if err := d.checkBufferMemory(s, kib); err != nil {
		return nil, err
	}
	// The size registers survive CLOSE, so they are written on every open
	if err := s.SetBufferSizes(d.bus, kib, kib); err != nil {
		return nil, fmt.Errorf("size %s buffers: %w", s, err)
	}
	udp, err := OpenUDP(d.bus, s, localPort, cfg)
	if err != nil {
		return nil, err
	}
	d.bufferKiB[s.index] = kib
	return udp, nil
}

// checkBufferMemory rejects a size that would take the checked-out sockets
// past the chip's buffer memory. Sockets not opened through OpenUDP count
// at the reset default.
func (d *Device) checkBufferMemory(s Socket, kib uint8) error {
	total := int(kib)
	for i := range uint8(register.MaxSockets) {
		if i == s.index || d.available&(1<<i) != 0 {
			continue
		}
		size := d.bufferKiB[i]
		if size == 0 {
			size = DefaultBufferSize / 1024
		}
		total += int(size)
	}
	if total > bufferMemoryKiB {
		return fmt.Errorf("%w: %s at %d KiB needs %d KiB of %d KiB buffer memory",
			ErrInvalidBufferSize, s, kib, total, bufferMemoryKiB)
	}
	return nil
}

// CloseUDP closes a socket opened with OpenUDP and returns it to the pool.
// The socket is returned even when the close command fails; the error is
// still reported.
func (d *Device) CloseUDP(udp *UDPSocket) error {
	if d.released {
		return ErrNotInitialized
	}
	s := udp.Socket()
	if s.index >= register.MaxSockets || d.available&(1<<s.index) != 0 {
		return fmt.Errorf("%w: %s", ErrSocketNotCheckedOut, s)
	}
	closeErr := udp.Close(d.bus)
	if err := d.ReleaseSocket(s); err != nil {
		return err
	}
	return closeErr
}

// Release gives up the device and returns its bus. Later calls on d return
// ErrNotInitialized.
func (d *Device) Release() Bus {
	d.released = true
	return d.bus
}

// Close releases the device and closes the bus if it can be closed.
func (d *Device) Close() error {
	bus := d.Release()
	if closer, ok := bus.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close bus: %w", err)
		}
	}
	return nil
}
