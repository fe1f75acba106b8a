// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package spi detects W5500 chips on Linux spidev nodes. Importing it
// registers the detector with the detection package.
package spi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ZaparooProject/go-w5500"
	"github.com/ZaparooProject/go-w5500/detection"
	"github.com/ZaparooProject/go-w5500/register"
	"github.com/ZaparooProject/go-w5500/transport/spi"
)

// Environment variables consulted by the detector.
const (
	EnvDevice = "W5500_SPI_DEVICE"
	EnvCSPin  = "W5500_SPI_CS_PIN"
)

const probeTimeout = 2 * time.Second

// Config represents SPI device configuration
type Config struct {
	// Additional metadata
	Metadata map[string]string `json:"metadata,omitempty"`
	// Device path (e.g., "/dev/spidev0.0")
	Device string `json:"device"`
	// Human-readable name
	Name string `json:"name,omitempty"`
	// GPIO chip select pin name (e.g., "GPIO8"), empty for the controller CS
	CSPin string `json:"cs_pin,omitempty"`
}

// probeBus is the subset of a transport the probe needs.
type probeBus interface {
	w5500.Bus
	Close() error
}

// openProbeBus is replaced in tests.
var openProbeBus = func(config Config) (probeBus, error) {
	return spi.New(config.Device, transportOptions(config.CSPin)...)
}

// configPaths lists the JSON files searched in order; the first readable
// one wins.
var configPaths = func() []string {
	return []string{
		"w5500-spi.json",
		".w5500-spi.json",
		filepath.Join(os.Getenv("HOME"), ".config", "w5500", "spi.json"),
		"/etc/w5500/spi.json",
	}
}

// spidevGlob matches the kernel's spidev nodes.
var spidevGlob = "/dev/spidev*"

type detector struct{}

// New creates a new SPI detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "spi"
}

// Detect searches for W5500 chips on SPI buses
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	configs := gatherConfigs()
	if len(configs) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, config := range configs {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(config.Device, opts.IgnorePaths) {
			continue
		}

		device := createDeviceInfo(config)
		if opts.Mode == detection.Passive || probeDevice(ctx, config, &device, opts.Mode) {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// OpenDevice opens a transport for a detected device, honouring its
// cs_pin metadata. It fits w5500.WithBusFromDeviceFactory.
func OpenDevice(device detection.DeviceInfo) (w5500.Bus, error) {
	t, err := spi.New(device.Path, transportOptions(device.Metadata["cs_pin"])...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device.Path, err)
	}
	return t, nil
}

func transportOptions(csPin string) []spi.Option {
	if csPin == "" {
		return nil
	}
	return []spi.Option{spi.WithChipSelectPin(csPin)}
}

// gatherConfigs collects SPI configurations from all sources
func gatherConfigs() []Config {
	var configs []Config
	configs = append(configs, loadConfigFile()...)
	if envConfig := loadEnvConfig(); envConfig != nil {
		configs = append(configs, *envConfig)
	}
	if runtime.GOOS == "linux" {
		configs = append(configs, detectLinuxSPIDevices()...)
	}
	return deduplicateConfigs(configs)
}

func createDeviceInfo(config Config) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  "spi",
		Path:       config.Device,
		Name:       config.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string, len(config.Metadata)+1),
	}
	for k, v := range config.Metadata {
		device.Metadata[k] = v
	}
	if config.CSPin != "" {
		device.Metadata["cs_pin"] = config.CSPin
	}
	if device.Name == "" {
		device.Name = fmt.Sprintf("SPI device at %s", config.Device)
	}
	return device
}

// probeDevice reads the version register and, in Full mode, the PHY
// configuration. It reports whether the device should be listed.
func probeDevice(ctx context.Context, config Config, device *detection.DeviceInfo, mode detection.Mode) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	type result struct {
		confidence detection.Confidence
		ok         bool
	}
	done := make(chan result, 1)
	metadata := make(map[string]string)

	go func() {
		confidence, ok := probeChip(config, mode, metadata)
		done <- result{confidence: confidence, ok: ok}
	}()

	select {
	case <-probeCtx.Done():
		return false
	case r := <-done:
		if !r.ok {
			return false
		}
		device.Confidence = r.confidence
		for k, v := range metadata {
			device.Metadata[k] = v
		}
		return true
	}
}

func probeChip(config Config, mode detection.Mode, metadata map[string]string) (detection.Confidence, bool) {
	bus, err := openProbeBus(config)
	if err != nil {
		return detection.Low, false
	}
	defer func() { _ = bus.Close() }()

	var version [1]byte
	if err := bus.ReadFrame(register.CommonBlock, register.Version, version[:]); err != nil {
		return detection.Low, false
	}
	metadata["version"] = fmt.Sprintf("0x%02X", version[0])

	switch version[0] {
	case register.ChipVersion:
	case 0x00, 0xFF:
		// floating or grounded MISO, nothing attached
		return detection.Low, false
	default:
		return detection.Medium, true
	}

	if mode == detection.Full {
		var phy [1]byte
		if err := bus.ReadFrame(register.CommonBlock, register.PhyConfiguration, phy[:]); err != nil {
			return detection.Medium, true
		}
		if phy[0]&register.PhyLinkUp != 0 {
			metadata["link"] = "up"
		} else {
			metadata["link"] = "down"
		}
	}
	return detection.High, true
}

// loadConfigFile loads SPI configurations from a JSON file holding either
// a list of configs or a single one.
func loadConfigFile() []Config {
	for _, path := range configPaths() {
		// #nosec G304 -- fixed search paths
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var configs []Config
		if err := json.Unmarshal(data, &configs); err != nil {
			var config Config
			if err := json.Unmarshal(data, &config); err == nil && config.Device != "" {
				return []Config{config}
			}
			continue
		}
		return configs
	}
	return nil
}

func loadEnvConfig() *Config {
	device := os.Getenv(EnvDevice)
	if device == "" {
		return nil
	}
	return &Config{
		Device: device,
		Name:   "SPI device from environment",
		CSPin:  os.Getenv(EnvCSPin),
	}
}

func detectLinuxSPIDevices() []Config {
	matches, err := filepath.Glob(spidevGlob)
	if err != nil {
		return nil
	}

	configs := make([]Config, 0, len(matches))
	for _, path := range matches {
		if _, err := os.Stat(path); err == nil {
			configs = append(configs, Config{
				Device: path,
				Name:   fmt.Sprintf("SPI device %s", filepath.Base(path)),
			})
		}
	}
	return configs
}

// deduplicateConfigs keeps the first config seen for each device path.
func deduplicateConfigs(configs []Config) []Config {
	seen := make(map[string]bool)
	var unique []Config
	for _, config := range configs {
		if config.Device == "" || seen[config.Device] {
			continue
		}
		seen[config.Device] = true
		unique = append(unique, config)
	}
	return unique
}
