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
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/ZaparooProject/go-w5500/register"
)

// MinReceiveSize is the size of the inline header the chip prepends to every
// UDP datagram in the RX buffer.
const MinReceiveSize = 8

// Socket is a handle on one of the chip's eight hardware sockets. It holds
// only the index; all socket state lives in chip registers and is read back
// on every call.
type Socket struct {
	index uint8
}

// NewSocket returns the socket with the given index (0-7).
func NewSocket(index uint8) (Socket, error) {
	if index >= register.MaxSockets {
		return Socket{}, fmt.Errorf("%w: %d", ErrInvalidSocket, index)
	}
	return Socket{index: index}, nil
}

// Index returns the socket number.
func (s Socket) Index() uint8 {
	return s.index
}

// RegisterBlock returns the block-select of the socket's register block.
func (s Socket) RegisterBlock() uint8 {
	return register.SocketBlock(s.index)
}

// TxBlock returns the block-select of the socket's TX buffer.
func (s Socket) TxBlock() uint8 {
	return register.TxBufferBlock(s.index)
}

// RxBlock returns the block-select of the socket's RX buffer.
func (s Socket) RxBlock() uint8 {
	return register.RxBufferBlock(s.index)
}

func (s Socket) String() string {
	return fmt.Sprintf("socket %d", s.index)
}

func (s Socket) readByte(bus Bus, offset uint16) (byte, error) {
	var data [1]byte
	if err := bus.ReadFrame(s.RegisterBlock(), offset, data[:]); err != nil {
		return 0, err //nolint:wrapcheck // bus errors surface unchanged
	}
	return data[0], nil
}

func (s Socket) writeByte(bus Bus, offset uint16, value byte) error {
	data := [1]byte{value}
	return bus.WriteFrame(s.RegisterBlock(), offset, data[:]) //nolint:wrapcheck // bus errors surface unchanged
}

func (s Socket) readUint16(bus Bus, offset uint16) (uint16, error) {
	var data [2]byte
	if err := bus.ReadFrame(s.RegisterBlock(), offset, data[:]); err != nil {
		return 0, err //nolint:wrapcheck // bus errors surface unchanged
	}
	return binary.BigEndian.Uint16(data[:]), nil
}

func (s Socket) writeUint16(bus Bus, offset, value uint16) error {
	var data [2]byte
	binary.BigEndian.PutUint16(data[:], value)
	return bus.WriteFrame(s.RegisterBlock(), offset, data[:]) //nolint:wrapcheck // bus errors surface unchanged
}

// SetMode writes the socket protocol into the mode register.
func (s Socket) SetMode(bus Bus, protocol register.Protocol) error {
	return s.writeByte(bus, register.SnMode, byte(protocol))
}

// ResetInterrupt clears the given interrupt flags. The register is
// write-one-to-clear, so other pending flags are left alone.
func (s Socket) ResetInterrupt(bus Bus, flag register.InterruptFlag) error {
	return s.writeByte(bus, register.SnInterrupt, byte(flag))
}

// HasInterrupt reports whether any of the given interrupt flags is set.
func (s Socket) HasInterrupt(bus Bus, flag register.InterruptFlag) (bool, error) {
	value, err := s.readByte(bus, register.SnInterrupt)
	if err != nil {
		return false, err
	}
	return value&byte(flag) != 0, nil
}

// SetInterruptMask selects which socket interrupts raise the chip's INTn pin.
func (s Socket) SetInterruptMask(bus Bus, mask register.InterruptFlag) error {
	return s.writeByte(bus, register.SnInterruptMask, byte(mask))
}

// SetSourcePort sets the local port.
func (s Socket) SetSourcePort(bus Bus, port uint16) error {
	return s.writeUint16(bus, register.SnSourcePort, port)
}

// SetDestinationIP sets the remote IPv4 address.
func (s Socket) SetDestinationIP(bus Bus, addr netip.Addr) error {
	if !addr.Is4() {
		return fmt.Errorf("%w: %s is not IPv4", ErrInvalidAddress, addr)
	}
	octets := addr.As4()
	return bus.WriteFrame(s.RegisterBlock(), register.SnDestinationIP, octets[:]) //nolint:wrapcheck // bus errors surface unchanged
}

// SetDestinationPort sets the remote port.
func (s Socket) SetDestinationPort(bus Bus, port uint16) error {
	return s.writeUint16(bus, register.SnDestinationPort, port)
}

// TxReadPointer returns how far the chip has transmitted.
func (s Socket) TxReadPointer(bus Bus) (uint16, error) {
	return s.readUint16(bus, register.SnTxReadPointer)
}

// SetTxReadPointer overwrites the TX read pointer.
func (s Socket) SetTxReadPointer(bus Bus, pointer uint16) error {
	return s.writeUint16(bus, register.SnTxReadPointer, pointer)
}

// TxWritePointer returns where the next outgoing byte goes.
func (s Socket) TxWritePointer(bus Bus) (uint16, error) {
	return s.readUint16(bus, register.SnTxWritePointer)
}

// SetTxWritePointer publishes the end of the data queued for transmission.
func (s Socket) SetTxWritePointer(bus Bus, pointer uint16) error {
	return s.writeUint16(bus, register.SnTxWritePointer, pointer)
}

// RxReadPointer returns where the next unread byte is.
func (s Socket) RxReadPointer(bus Bus) (uint16, error) {
	return s.readUint16(bus, register.SnRxReadPointer)
}

// SetRxReadPointer marks data up to pointer as consumed. The chip frees the
// space after a receive command.
func (s Socket) SetRxReadPointer(bus Bus, pointer uint16) error {
	return s.writeUint16(bus, register.SnRxReadPointer, pointer)
}

// Command issues a socket command.
func (s Socket) Command(bus Bus, cmd register.Command) error {
	debugf("W5500 %s: command %s", s, cmd)
	return s.writeByte(bus, register.SnCommand, byte(cmd))
}

// Status reads the socket status register.
func (s Socket) Status(bus Bus) (register.Status, error) {
	value, err := s.readByte(bus, register.SnStatus)
	if err != nil {
		return 0, err
	}
	return register.Status(value), nil
}

// SetBufferSizes sets the socket's RX and TX buffer sizes in KiB. Valid sizes
// are 0, 1, 2, 4, 8 and 16; the chip holds 16 KiB per direction shared by all
// sockets. Takes effect on the next open.
func (s Socket) SetBufferSizes(bus Bus, rxKiB, txKiB uint8) error {
	for _, size := range []uint8{rxKiB, txKiB} {
		if !validBufferKiB(size) {
			return fmt.Errorf("%w: %d KiB", ErrInvalidBufferSize, size)
		}
	}
	if err := s.writeByte(bus, register.SnRxBufferSize, rxKiB); err != nil {
		return err
	}
	return s.writeByte(bus, register.SnTxBufferSize, txKiB)
}

func validBufferKiB(size uint8) bool {
	switch size {
	case 0, 1, 2, 4, 8, 16:
		return true
	default:
		return false
	}
}

// ReceiveSize returns the number of unread bytes in the RX buffer.
//
// The chip updates the received-size register from its own transfer engine
// while a packet lands, so one read may observe a half-written count. The
// register is read twice per round and the value is accepted only when both
// reads agree and at least one datagram header is present.
//
// The loop has no bound. It blocks until data arrives; on a healthy chip the
// samples settle within a round or two once they do. A chip that never
// settles (hardware fault) blocks the caller forever.
func (s Socket) ReceiveSize(bus Bus) (uint16, error) {
	for {
		size, stable, err := s.sampleReceiveSize(bus)
		if err != nil {
			return 0, err
		}
		if stable && size >= MinReceiveSize {
			return size, nil
		}
	}
}

// sampleReceiveSize runs one stabilization round: two back-to-back reads of
// the received-size register.
func (s Socket) sampleReceiveSize(bus Bus) (size uint16, stable bool, err error) {
	first, err := s.readUint16(bus, register.SnReceivedSize)
	if err != nil {
		return 0, false, err
	}
	second, err := s.readUint16(bus, register.SnReceivedSize)
	if err != nil {
		return 0, false, err
	}
	return first, first == second, nil
}

// settledReceiveSize repeats stabilization rounds until two reads agree and
// returns the agreed value, which may be zero.
func (s Socket) settledReceiveSize(bus Bus) (uint16, error) {
	for {
		size, stable, err := s.sampleReceiveSize(bus)
		if err != nil {
			return 0, err
		}
		if stable {
			return size, nil
		}
	}
}
