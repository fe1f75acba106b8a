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

package register

// Common block register offsets.
const (
	Mode                uint16 = 0x0000
	Gateway             uint16 = 0x0001
	SubnetMask          uint16 = 0x0005
	MacAddress          uint16 = 0x0009
	IPAddress           uint16 = 0x000F
	InterruptLowLevel   uint16 = 0x0013
	Interrupt           uint16 = 0x0015
	InterruptMask       uint16 = 0x0016
	SocketInterrupt     uint16 = 0x0017
	SocketInterruptMask uint16 = 0x0018
	RetryTime           uint16 = 0x0019
	RetryCount          uint16 = 0x001B
	PhyConfiguration    uint16 = 0x002E
	Version             uint16 = 0x0039
)

// ChipVersion is the value the version register reads on a W5500.
const ChipVersion uint8 = 0x04

// ModeReset is the software reset bit of the common mode register. The chip
// clears it once the reset completes.
const ModeReset uint8 = 0x80

// Socket register offsets. The table is identical for every socket; only the
// block-select differs.
const (
	SnMode            uint16 = 0x0000
	SnCommand         uint16 = 0x0001
	SnInterrupt       uint16 = 0x0002
	SnStatus          uint16 = 0x0003
	SnSourcePort      uint16 = 0x0004
	SnDestinationMAC  uint16 = 0x0006
	SnDestinationIP   uint16 = 0x000C
	SnDestinationPort uint16 = 0x0010
	SnMaxSegmentSize  uint16 = 0x0012
	SnRxBufferSize    uint16 = 0x001E
	SnTxBufferSize    uint16 = 0x001F
	SnTxFreeSize      uint16 = 0x0020
	SnTxReadPointer   uint16 = 0x0022
	SnTxWritePointer  uint16 = 0x0024
	SnReceivedSize    uint16 = 0x0026
	SnRxReadPointer   uint16 = 0x0028
	SnRxWritePointer  uint16 = 0x002A
	SnInterruptMask   uint16 = 0x002C
)

// PHY configuration register bits.
const (
	PhyLinkUp uint8 = 0x01
	PhyReset  uint8 = 0x80
)

// Common mode register bits.
const (
	ModeWakeOnLAN uint8 = 0x20
	ModePingBlock uint8 = 0x10
	ModePPPoE     uint8 = 0x08
	ModeForceARP  uint8 = 0x02
)
