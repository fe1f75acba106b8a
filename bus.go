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
	"github.com/ZaparooProject/go-w5500/internal/frame"
	"periph.io/x/conn/v3/gpio"
)

// Bus carries framed transfers to the chip. Each call is one complete
// frame: header, data phase, chip select released.
//
// Implementations are not required to be safe for concurrent use. Frames
// must never interleave on the wire; callers sharing a bus between
// goroutines wrap it with NewSerializedBus.
type Bus interface {
	// ReadFrame reads len(buf) bytes starting at offset within block.
	ReadFrame(block uint8, offset uint16, buf []byte) error
	// WriteFrame writes data starting at offset within block.
	WriteFrame(block uint8, offset uint16, data []byte) error
}

// Conn is a full-duplex byte exchange. Tx clocks out w while clocking in r;
// when both are non-nil they have the same length. periph.io spi.Conn
// satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// ByteExchanger is the single-byte full-duplex primitive exposed by
// microcontroller SPI peripherals: send one byte, receive the byte clocked
// in at the same time.
type ByteExchanger interface {
	Transfer(b byte) (byte, error)
}

// ByteConn adapts a ByteExchanger to Conn.
type ByteConn struct {
	X ByteExchanger
}

// Tx implements Conn one byte at a time. Positions past the end of w are
// clocked out as zero.
func (c ByteConn) Tx(w, r []byte) error {
	n := max(len(w), len(r))
	for i := range n {
		var out byte
		if i < len(w) {
			out = w[i]
		}
		in, err := c.X.Transfer(out)
		if err != nil {
			return err //nolint:wrapcheck // exchange errors surface unchanged
		}
		if i < len(r) {
			r[i] = in
		}
	}
	return nil
}

// ChipSelect drives the active-low chip select line. periph.io gpio.PinOut
// satisfies it.
type ChipSelect interface {
	Out(l gpio.Level) error
}

type noChipSelect struct{}

func (noChipSelect) Out(gpio.Level) error { return nil }

// NoChipSelect is used when the SPI controller asserts chip select itself
// for the duration of each transfer, as Linux spidev does.
var NoChipSelect ChipSelect = noChipSelect{}

// FourWire is the Bus for the chip's four-wire SPI mode: SCLK, MOSI, MISO
// and a dedicated chip select.
//
// The header and data phase go out as one contiguous Tx so the frame stays
// intact when chip select is controller-managed.
type FourWire struct {
	conn Conn
	cs   ChipSelect
}

// NewFourWire creates a four-wire bus. A nil cs means NoChipSelect.
func NewFourWire(conn Conn, cs ChipSelect) *FourWire {
	if cs == nil {
		cs = NoChipSelect
	}
	return &FourWire{conn: conn, cs: cs}
}

// WriteFrame implements Bus.
func (f *FourWire) WriteFrame(block uint8, offset uint16, data []byte) error {
	buf := frame.GetBuffer(frame.HeaderSize + len(data))
	defer frame.PutBuffer(buf)

	frame.PutHeader(buf, block, offset, true)
	copy(buf[frame.HeaderSize:], data)
	return f.transfer(buf, nil)
}

// ReadFrame implements Bus.
func (f *FourWire) ReadFrame(block uint8, offset uint16, buf []byte) error {
	size := frame.HeaderSize + len(buf)
	out := frame.GetBuffer(size)
	defer frame.PutBuffer(out)
	in := frame.GetBuffer(size)
	defer frame.PutBuffer(in)

	frame.PutHeader(out, block, offset, false)
	if err := f.transfer(out, in); err != nil {
		return err
	}
	copy(buf, in[frame.HeaderSize:])
	return nil
}

// transfer runs one Tx with chip select asserted. Chip select is released on
// every path; a release failure is reported only if the transfer succeeded.
func (f *FourWire) transfer(w, r []byte) (err error) {
	defer func() {
		if csErr := f.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	if err := f.cs.Out(gpio.Low); err != nil {
		return err //nolint:wrapcheck // pin errors surface unchanged
	}
	return f.conn.Tx(w, r) //nolint:wrapcheck // exchange errors surface unchanged
}
