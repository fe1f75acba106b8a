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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-w5500/detection"
)

// BusFactory opens a Bus for a device path. A Bus that also implements
// io.Closer is closed by Device.Close.
type BusFactory func(path string) (Bus, error)

// BusFromDeviceFactory opens a Bus for a detected device.
type BusFromDeviceFactory func(device detection.DeviceInfo) (Bus, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	busFactory       BusFactory
	busDeviceFactory BusFromDeviceFactory
	deviceDetector   func(context.Context, *detection.Options) ([]detection.DeviceInfo, error)
	deviceOptions    []Option
	timeout          time.Duration
	autoDetect       bool
}

// WithAutoDetection enables automatic device detection instead of using a specific path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithDetectionTimeout bounds auto-detection
func WithDetectionTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		c.timeout = timeout
		return nil
	}
}

// WithBusFactory sets the factory used for an explicit device path
func WithBusFactory(factory BusFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.busFactory = factory
		return nil
	}
}

// WithBusFromDeviceFactory sets the factory used for auto-detected devices
func WithBusFromDeviceFactory(factory BusFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.busDeviceFactory = factory
		return nil
	}
}

// WithDeviceDetector replaces detection.DetectAll for auto-detection
func WithDeviceDetector(
	detector func(context.Context, *detection.Options) ([]detection.DeviceInfo, error),
) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceDetector = detector
		return nil
	}
}

// ConnectDevice opens a bus from a path or auto-detection and initializes
// the chip with network.
//
// Example usage:
//
//	// Connect to a specific spidev node
//	device, err := w5500.ConnectDevice(ctx, "/dev/spidev0.0", network,
//		w5500.WithBusFactory(openSPI))
//
//	// Auto-detect
//	device, err := w5500.ConnectDevice(ctx, "", network,
//		w5500.WithAutoDetection(), w5500.WithBusFromDeviceFactory(openDetected))
func ConnectDevice(ctx context.Context, path string, network NetworkConfig, opts ...ConnectOption) (*Device, error) {
	config := &connectConfig{timeout: 5 * time.Second}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	var bus Bus
	var err error
	if config.autoDetect || path == "" {
		bus, err = createAutoDetectedBus(ctx, config)
	} else {
		bus, err = createManualBus(path, config.busFactory)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create bus: %w", err)
	}

	device, err := setupDevice(bus, network, config.deviceOptions)
	if err != nil {
		if closer, ok := bus.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, err
	}
	return device, nil
}

func setupDevice(bus Bus, network NetworkConfig, opts []Option) (*Device, error) {
	u, err := New(bus, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	device, err := u.Initialize(network)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}
	return device, nil
}

func createManualBus(path string, factory BusFactory) (Bus, error) {
	if factory == nil {
		return nil, errors.New("bus factory not provided")
	}
	bus, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bus for path %s: %w", path, err)
	}
	return bus, nil
}

func createAutoDetectedBus(ctx context.Context, config *connectConfig) (Bus, error) {
	if config.busDeviceFactory == nil {
		return nil, errors.New("bus device factory not provided")
	}

	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe
	opts.Timeout = config.timeout

	detect := config.deviceDetector
	if detect == nil {
		detect = detection.DetectAll
	}
	devices, err := detect(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}

	Debugf("W5500 auto-detected %s", devices[0])
	return config.busDeviceFactory(devices[0])
}
