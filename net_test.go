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
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMAC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    MacAddress
		wantErr bool
	}{
		{name: "colon", input: "02:00:5e:10:00:01", want: MacAddress{0x02, 0x00, 0x5E, 0x10, 0x00, 0x01}},
		{name: "hyphen", input: "02-00-5E-10-00-01", want: MacAddress{0x02, 0x00, 0x5E, 0x10, 0x00, 0x01}},
		{name: "dot", input: "0200.5e10.0001", want: MacAddress{0x02, 0x00, 0x5E, 0x10, 0x00, 0x01}},
		{name: "garbage", input: "not a mac", wantErr: true},
		{name: "eui64", input: "02:00:5e:10:00:01:02:03", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMAC(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMacAddress_String(t *testing.T) {
	t.Parallel()
	m := MacAddress{0x02, 0xAB, 0x00, 0x01, 0xFF, 0x10}
	assert.Equal(t, "02:AB:00:01:FF:10", m.String())
	assert.True(t, m.IsLocallyAdministered())
	assert.False(t, MacAddress{0x00, 0x08, 0xDC}.IsLocallyAdministered())
}

func TestSubnetFromPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want string
		bits int
	}{
		{bits: 0, want: "0.0.0.0"},
		{bits: 8, want: "255.0.0.0"},
		{bits: 20, want: "255.255.240.0"},
		{bits: 24, want: "255.255.255.0"},
		{bits: 32, want: "255.255.255.255"},
	}

	for _, tt := range tests {
		got, err := SubnetFromPrefix(tt.bits)
		require.NoError(t, err)
		assert.Equal(t, netip.MustParseAddr(tt.want), got, "prefix %d", tt.bits)
	}

	_, err := SubnetFromPrefix(33)
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = SubnetFromPrefix(-1)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestNetworkConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  NetworkConfig
		wantErr bool
	}{
		{name: "complete", config: testNetwork()},
		{name: "ip only", config: NetworkConfig{IP: netip.MustParseAddr("10.1.2.3")}},
		{name: "missing ip", config: NetworkConfig{}, wantErr: true},
		{
			name: "ipv6 gateway",
			config: NetworkConfig{
				IP:      netip.MustParseAddr("10.1.2.3"),
				Gateway: netip.MustParseAddr("fe80::1"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.config
			err := cfg.validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.Gateway.Is4())
			assert.True(t, cfg.Subnet.Is4())
		})
	}
}
