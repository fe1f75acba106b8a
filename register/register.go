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

// Package register holds the W5500 register map: block-select arithmetic and
// the fixed offset tables for the common block and the per-socket blocks.
//
// Nothing in this package performs I/O. Every address is derived from a
// socket index and a constant offset.
package register

import "fmt"

// MaxSockets is the number of hardware sockets on the chip.
const MaxSockets = 8

// CommonBlock is the block-select value of the common register block.
const CommonBlock uint8 = 0x00

// Address identifies one register or buffer location on the chip.
type Address struct {
	Offset uint16
	Block  uint8
}

func (a Address) String() string {
	return fmt.Sprintf("block 0x%02X offset 0x%04X", a.Block, a.Offset)
}

// Block-select layout per socket n:
//
//	n*4+1  socket registers
//	n*4+2  TX buffer
//	n*4+3  RX buffer
//	n*4+4  reserved
//
// Indices are not range checked here; callers validate against MaxSockets.

// SocketBlock returns the register block-select for socket index.
func SocketBlock(index uint8) uint8 {
	return index*4 + 1
}

// TxBufferBlock returns the TX buffer block-select for socket index.
func TxBufferBlock(index uint8) uint8 {
	return index*4 + 2
}

// RxBufferBlock returns the RX buffer block-select for socket index.
func RxBufferBlock(index uint8) uint8 {
	return index*4 + 3
}

// SocketRegister pairs a socket register offset with the socket's register block.
func SocketRegister(index uint8, offset uint16) Address {
	return Address{Block: SocketBlock(index), Offset: offset}
}

// Common returns the address of a common block register.
func Common(offset uint16) Address {
	return Address{Block: CommonBlock, Offset: offset}
}
