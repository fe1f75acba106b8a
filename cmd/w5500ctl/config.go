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

package main

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ZaparooProject/go-w5500"
	"github.com/ZaparooProject/go-w5500/polling"
)

// w5500ctl config.toml key mapping.
type fileConfig struct {
	Device       string `toml:"device"`
	CSPin        string `toml:"cs_pin"`
	IP           string `toml:"ip"`
	Gateway      string `toml:"gateway"`
	Subnet       string `toml:"subnet"`
	MAC          string `toml:"mac"`
	PollInterval string `toml:"poll_interval"`
	SessionLog   string `toml:"session_log_dir"`
	FrequencyMHz int    `toml:"frequency_mhz"`
	SendRetries  int    `toml:"send_retries"`
	Port         uint16 `toml:"port"`
	BufferSize   uint16 `toml:"buffer_size"`
	Debug        bool   `toml:"debug"`
	Echo         bool   `toml:"echo"`
}

type appConfig struct {
	device        string
	csPin         string
	ip            string
	gateway       string
	subnet        string
	mac           string
	sendTo        string
	data          string
	sessionLogDir string
	pollInterval  time.Duration
	frequencyMHz  int
	sendRetries   int
	port          uint16
	bufferSize    uint16
	debug         bool
	echo          bool
}

func defaultAppConfig() appConfig {
	return appConfig{
		ip:           "192.168.1.50",
		gateway:      "192.168.1.1",
		subnet:       "255.255.255.0",
		mac:          "02:00:00:00:55:00",
		port:         5000,
		frequencyMHz: 10,
		bufferSize:   w5500.DefaultBufferSize,
		sendRetries:  w5500.DefaultSendRetries,
		pollInterval: polling.DefaultConfig().PollInterval,
	}
}

// loadConfig overlays the keys defined in path onto the defaults.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load w5500ctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return appConfig{}, fmt.Errorf("load w5500ctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("cs_pin") {
		cfg.csPin = strings.TrimSpace(raw.CSPin)
	}
	if meta.IsDefined("ip") {
		cfg.ip = strings.TrimSpace(raw.IP)
	}
	if meta.IsDefined("gateway") {
		cfg.gateway = strings.TrimSpace(raw.Gateway)
	}
	if meta.IsDefined("subnet") {
		cfg.subnet = strings.TrimSpace(raw.Subnet)
	}
	if meta.IsDefined("mac") {
		cfg.mac = strings.TrimSpace(raw.MAC)
	}
	if meta.IsDefined("port") {
		cfg.port = raw.Port
	}
	if meta.IsDefined("frequency_mhz") {
		cfg.frequencyMHz = raw.FrequencyMHz
	}
	if meta.IsDefined("buffer_size") {
		cfg.bufferSize = raw.BufferSize
	}
	if meta.IsDefined("send_retries") {
		cfg.sendRetries = raw.SendRetries
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return appConfig{}, fmt.Errorf("load w5500ctl config: poll_interval: %w", err)
		}
		cfg.pollInterval = d
	}
	if meta.IsDefined("session_log_dir") {
		cfg.sessionLogDir = strings.TrimSpace(raw.SessionLog)
	}
	if meta.IsDefined("debug") {
		cfg.debug = raw.Debug
	}
	if meta.IsDefined("echo") {
		cfg.echo = raw.Echo
	}
	return cfg, nil
}

// network parses the address settings into a chip network configuration.
func (c appConfig) network() (w5500.NetworkConfig, error) {
	var network w5500.NetworkConfig
	var err error

	if network.IP, err = netip.ParseAddr(c.ip); err != nil {
		return network, fmt.Errorf("ip: %w", err)
	}
	if c.gateway != "" {
		if network.Gateway, err = netip.ParseAddr(c.gateway); err != nil {
			return network, fmt.Errorf("gateway: %w", err)
		}
	}
	if c.subnet != "" {
		if network.Subnet, err = parseSubnet(c.subnet); err != nil {
			return network, fmt.Errorf("subnet: %w", err)
		}
	}
	if network.MAC, err = w5500.ParseMAC(c.mac); err != nil {
		return network, fmt.Errorf("mac: %w", err)
	}
	return network, nil
}

// parseSubnet accepts a dotted mask or a prefix length such as "/24".
func parseSubnet(s string) (netip.Addr, error) {
	if bits, ok := strings.CutPrefix(s, "/"); ok {
		var n int
		if _, err := fmt.Sscanf(bits, "%d", &n); err != nil {
			return netip.Addr{}, fmt.Errorf("invalid prefix %q: %w", s, err)
		}
		return w5500.SubnetFromPrefix(n)
	}
	return netip.ParseAddr(s)
}

func (c appConfig) udpConfig() *w5500.UDPConfig {
	cfg := w5500.DefaultUDPConfig()
	cfg.BufferSize = c.bufferSize
	cfg.SendRetries = c.sendRetries
	return cfg
}

func (c appConfig) pollingConfig() *polling.Config {
	cfg := polling.DefaultConfig()
	cfg.PollInterval = c.pollInterval
	cfg.BufferSize = int(c.bufferSize)
	return cfg
}
