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

// Package frame encodes the W5500 SPI frame header and provides pooled
// scratch buffers for frame assembly.
//
// A frame is a 3-byte header followed by the data phase:
//
//	[offset hi][offset lo][control]  data...
//
// The control byte packs the 5-bit block-select, the read/write bit and the
// 2-bit operation mode:
//
//	bit 7..3  block-select
//	bit 2     1 = write, 0 = read
//	bit 1..0  operation mode (00 = variable length)
package frame

import (
	"errors"
	"fmt"
)

// HeaderSize is the length of the address phase plus control phase.
const HeaderSize = 3

// Control byte fields
const (
	BlockShift = 3
	BlockMask  = 0x1F
	DirWrite   = 0x04
	ModeMask   = 0x03
)

// Operation modes. The driver always uses ModeVariable, where the chip
// keeps reading or writing until chip select is released.
const (
	ModeVariable = 0x00
	ModeFixed1   = 0x01
	ModeFixed2   = 0x02
	ModeFixed4   = 0x03
)

// ErrShortHeader is returned when fewer than HeaderSize bytes are decoded.
var ErrShortHeader = errors.New("frame header too short")

// Header is a decoded frame header.
type Header struct {
	Offset uint16
	Block  uint8
	Mode   uint8
	Write  bool
}

func (h Header) String() string {
	dir := "read"
	if h.Write {
		dir = "write"
	}
	return fmt.Sprintf("%s block 0x%02X offset 0x%04X mode %d", dir, h.Block, h.Offset, h.Mode)
}

// ControlByte builds the control phase byte for a variable-length frame.
func ControlByte(block uint8, write bool) byte {
	ctrl := (block & BlockMask) << BlockShift
	if write {
		ctrl |= DirWrite
	}
	return ctrl | ModeVariable
}

// PutHeader writes the header for a variable-length frame into dst, which
// must be at least HeaderSize long.
func PutHeader(dst []byte, block uint8, offset uint16, write bool) {
	_ = dst[HeaderSize-1]
	dst[0] = byte(offset >> 8)
	dst[1] = byte(offset)
	dst[2] = ControlByte(block, write)
}

// EncodeHeader returns the header for a variable-length frame.
func EncodeHeader(block uint8, offset uint16, write bool) [HeaderSize]byte {
	var hdr [HeaderSize]byte
	PutHeader(hdr[:], block, offset, write)
	return hdr
}

// DecodeHeader parses the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(buf))
	}
	return Header{
		Offset: uint16(buf[0])<<8 | uint16(buf[1]),
		Block:  (buf[2] >> BlockShift) & BlockMask,
		Write:  buf[2]&DirWrite != 0,
		Mode:   buf[2] & ModeMask,
	}, nil
}
