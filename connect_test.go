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
	"testing"

	"github.com/ZaparooProject/go-w5500/detection"
	testutil "github.com/ZaparooProject/go-w5500/internal/testing"
	"github.com/ZaparooProject/go-w5500/register"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectDevice_ManualPath(t *testing.T) {
	t.Parallel()

	chip := testutil.NewVirtualW5500()
	var gotPath string
	device, err := ConnectDevice(context.Background(), "/dev/spidev0.0", testNetwork(),
		WithBusFactory(func(path string) (Bus, error) {
			gotPath = path
			return NewFourWire(chip, chip), nil
		}),
		WithDeviceOptions(WithModeFlags(register.ModePingBlock)),
	)
	require.NoError(t, err)
	assert.Equal(t, "/dev/spidev0.0", gotPath)
	assert.Equal(t, testNetwork().IP, device.Network().IP)
	assert.Equal(t, []byte{register.ModePingBlock}, chip.Common(register.Mode, 1))
}

func TestConnectDevice_NoFactory(t *testing.T) {
	t.Parallel()

	_, err := ConnectDevice(context.Background(), "/dev/spidev0.0", testNetwork())
	require.Error(t, err)

	_, err = ConnectDevice(context.Background(), "", testNetwork())
	require.Error(t, err)
}

func TestConnectDevice_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("permission denied")
	_, err := ConnectDevice(context.Background(), "/dev/spidev0.0", testNetwork(),
		WithBusFactory(func(string) (Bus, error) { return nil, boom }))
	require.ErrorIs(t, err, boom)
}

func TestConnectDevice_ClosesBusOnInitFailure(t *testing.T) {
	t.Parallel()

	bus := NewMockBus()
	bus.SetMemory(register.Common(register.Version), []byte{0x51})
	_, err := ConnectDevice(context.Background(), "/dev/spidev0.0", testNetwork(),
		WithBusFactory(func(string) (Bus, error) { return bus, nil }),
		WithDeviceOptions(WithoutReset()),
	)
	require.ErrorIs(t, err, ErrDeviceNotFound)

	err = bus.ReadFrame(register.CommonBlock, register.Version, make([]byte, 1))
	assert.ErrorIs(t, err, ErrMockClosed)
}

func TestConnectDevice_AutoDetection(t *testing.T) {
	t.Parallel()

	chip := testutil.NewVirtualW5500()
	var gotMode detection.Mode
	var opened detection.DeviceInfo

	device, err := ConnectDevice(context.Background(), "", testNetwork(),
		WithAutoDetection(),
		WithDeviceDetector(func(_ context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
			gotMode = opts.Mode
			return []detection.DeviceInfo{
				{Transport: "spi", Path: "/dev/spidev1.0", Confidence: detection.High},
				{Transport: "spi", Path: "/dev/spidev1.1", Confidence: detection.Low},
			}, nil
		}),
		WithBusFromDeviceFactory(func(info detection.DeviceInfo) (Bus, error) {
			opened = info
			return NewFourWire(chip, chip), nil
		}),
	)
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, detection.Safe, gotMode)
	assert.Equal(t, "/dev/spidev1.0", opened.Path)
}

func TestConnectDevice_AutoDetectionErrors(t *testing.T) {
	t.Parallel()

	factory := WithBusFromDeviceFactory(func(detection.DeviceInfo) (Bus, error) {
		return NewMockBus(), nil
	})

	_, err := ConnectDevice(context.Background(), "", testNetwork(), factory,
		WithDeviceDetector(func(context.Context, *detection.Options) ([]detection.DeviceInfo, error) {
			return nil, detection.ErrNoDevicesFound
		}))
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)

	_, err = ConnectDevice(context.Background(), "", testNetwork(), factory,
		WithDeviceDetector(func(context.Context, *detection.Options) ([]detection.DeviceInfo, error) {
			return nil, nil
		}))
	require.ErrorIs(t, err, ErrDeviceNotFound)
}
