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
	"fmt"
	"net"
	"net/netip"
)

// MacAddress is an EUI-48 hardware address.
type MacAddress [6]byte

// ParseMAC parses a colon, hyphen or dot separated EUI-48 address.
func ParseMAC(s string) (MacAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MacAddress{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(hw) != len(MacAddress{}) {
		return MacAddress{}, fmt.Errorf("%w: %s is not EUI-48", ErrInvalidAddress, s)
	}
	return MacAddress(hw), nil
}

func (m MacAddress) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsLocallyAdministered reports whether the locally administered bit is set.
// Boards without a vendor-assigned address should use one of these.
func (m MacAddress) IsLocallyAdministered() bool {
	return m[0]&0x02 != 0
}

// NetworkConfig is the static IPv4 configuration written during
// initialization.
type NetworkConfig struct {
	IP      netip.Addr
	Gateway netip.Addr
	Subnet  netip.Addr
	MAC     MacAddress
}

// validate fills unset gateway and subnet with 0.0.0.0 and rejects
// non-IPv4 addresses.
func (c *NetworkConfig) validate() error {
	if !c.Gateway.IsValid() {
		c.Gateway = netip.IPv4Unspecified()
	}
	if !c.Subnet.IsValid() {
		c.Subnet = netip.IPv4Unspecified()
	}
	for _, field := range []struct {
		addr *netip.Addr
		name string
	}{
		{name: "ip", addr: &c.IP},
		{name: "gateway", addr: &c.Gateway},
		{name: "subnet", addr: &c.Subnet},
	} {
		*field.addr = field.addr.Unmap()
		if !field.addr.Is4() {
			return fmt.Errorf("%w: %s %s is not IPv4", ErrInvalidAddress, field.name, *field.addr)
		}
	}
	return nil
}

// SubnetFromPrefix returns the dotted mask for an IPv4 prefix length.
func SubnetFromPrefix(bits int) (netip.Addr, error) {
	if bits < 0 || bits > 32 {
		return netip.Addr{}, fmt.Errorf("%w: prefix length %d", ErrInvalidAddress, bits)
	}
	mask := net.CIDRMask(bits, 32)
	return netip.AddrFrom4([4]byte(mask)), nil
}
