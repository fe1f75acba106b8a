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

// Package spi provides the Linux spidev transport for the W5500, built on
// periph.io.
package spi

import (
	"fmt"

	"github.com/ZaparooProject/go-w5500"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultFrequency is well inside the chip's 80 MHz limit and what
	// most SBC spidev controllers run reliably over jumper wires.
	DefaultFrequency = 10 * physic.MegaHertz
	// defaultTraceSize is how many frames an error report carries.
	defaultTraceSize = 16
)

type config struct {
	csPin     string
	frequency physic.Frequency
	mode      spi.Mode
	traceSize int
}

// Option configures the SPI transport.
type Option func(*config) error

// WithFrequency sets the SPI clock.
func WithFrequency(f physic.Frequency) Option {
	return func(c *config) error {
		if f <= 0 {
			return fmt.Errorf("invalid SPI frequency %s", f)
		}
		c.frequency = f
		return nil
	}
}

// WithMode selects SPI mode 0 or 3, the two the chip supports.
func WithMode(m spi.Mode) Option {
	return func(c *config) error {
		if m != spi.Mode0 && m != spi.Mode3 {
			return fmt.Errorf("SPI mode %s not supported by W5500", m)
		}
		c.mode = m
		return nil
	}
}

// WithChipSelectPin drives chip select from a GPIO pin, looked up with
// gpioreg.ByName, instead of the controller's own CS line.
func WithChipSelectPin(name string) Option {
	return func(c *config) error {
		c.csPin = name
		return nil
	}
}

// WithTraceSize sets how many recent frames are attached to transfer
// errors. Zero disables tracing.
func WithTraceSize(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return fmt.Errorf("trace size must not be negative, got %d", n)
		}
		c.traceSize = n
		return nil
	}
}

// Transport is a w5500.Bus over a periph.io SPI port.
type Transport struct {
	port     spi.PortCloser
	cs       gpio.PinOut
	bus      *w5500.FourWire
	trace    *traceBuffer
	portName string
}

// New opens the SPI port (e.g. "/dev/spidev0.0" or "SPI0.0").
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := &config{
		frequency: DefaultFrequency,
		mode:      spi.Mode0,
		traceSize: defaultTraceSize,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	var cs gpio.PinOut
	if cfg.csPin != "" {
		pin := gpioreg.ByName(cfg.csPin)
		if pin == nil {
			return nil, fmt.Errorf("chip select pin %s not found", cfg.csPin)
		}
		cs = pin
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	t, err := newTransport(port, portName, cfg, cs)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

func newTransport(port spi.PortCloser, portName string, cfg *config, cs gpio.PinOut) (*Transport, error) {
	conn, err := port.Connect(cfg.frequency, cfg.mode, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	t := &Transport{
		port:     port,
		portName: portName,
		trace:    newTraceBuffer(cfg.traceSize),
	}

	var chipSelect w5500.ChipSelect
	if cs != nil {
		if err := cs.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("failed to release chip select: %w", err)
		}
		t.cs = cs
		chipSelect = cs
	}
	t.bus = w5500.NewFourWire(conn, chipSelect)
	return t, nil
}

// ReadFrame implements w5500.Bus.
func (t *Transport) ReadFrame(block uint8, offset uint16, buf []byte) error {
	err := t.bus.ReadFrame(block, offset, buf)
	t.trace.record(false, block, offset, buf, err)
	if err != nil {
		return t.trace.wrap(t.portName, err)
	}
	return nil
}

// WriteFrame implements w5500.Bus.
func (t *Transport) WriteFrame(block uint8, offset uint16, data []byte) error {
	err := t.bus.WriteFrame(block, offset, data)
	t.trace.record(true, block, offset, data, err)
	if err != nil {
		return t.trace.wrap(t.portName, err)
	}
	return nil
}

// Bus returns the untraced four-wire bus.
func (t *Transport) Bus() *w5500.FourWire {
	return t.bus
}

// Close releases chip select and closes the port.
func (t *Transport) Close() error {
	if t.cs != nil {
		_ = t.cs.Out(gpio.High)
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close SPI port: %w", err)
	}
	return nil
}

func (t *Transport) String() string {
	return "spi://" + t.portName
}

var _ w5500.Bus = (*Transport)(nil)
