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

// Command w5500ctl brings up a W5500 on a spidev node and sends or
// receives UDP datagrams through it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-w5500"
	detectspi "github.com/ZaparooProject/go-w5500/detection/spi"
	"github.com/ZaparooProject/go-w5500/internal/syncutil"
	"github.com/ZaparooProject/go-w5500/polling"
	"github.com/ZaparooProject/go-w5500/transport/spi"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
)

// debugLockTimeout flags a bus lock held across more than a few send waits.
const debugLockTimeout = 5 * time.Second

// Package-level flag variables
var (
	flagConfig  string
	flagDevice  string
	flagCSPin   string
	flagIP      string
	flagGateway string
	flagSubnet  string
	flagMAC     string
	flagSend    string
	flagData    string
	flagLogDir  string
	flagPort    uint
	flagDebug   bool
	flagEcho    bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "TOML config file")
	flag.StringVar(&flagDevice, "device", "", "spidev path (auto-detect if empty)")
	flag.StringVar(&flagCSPin, "cs", "", "GPIO chip select pin name")
	flag.StringVar(&flagIP, "ip", "", "Source IPv4 address")
	flag.StringVar(&flagGateway, "gateway", "", "Gateway IPv4 address")
	flag.StringVar(&flagSubnet, "subnet", "", "Subnet mask or /prefix")
	flag.StringVar(&flagMAC, "mac", "", "Hardware address")
	flag.UintVar(&flagPort, "port", 0, "Local UDP port")
	flag.StringVar(&flagSend, "send", "", "Send one datagram to host:port and exit")
	flag.StringVar(&flagData, "data", "hello", "Payload for -send")
	flag.StringVar(&flagLogDir, "log-dir", "", "Write a driver session log into this directory")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagEcho, "echo", false, "Echo received datagrams back to the sender")
}

// parseConfig loads the config file, if any, and applies the flags that
// were set on the command line.
func parseConfig() (appConfig, error) {
	cfg := defaultAppConfig()
	if flagConfig != "" {
		loaded, err := loadConfig(flagConfig)
		if err != nil {
			return appConfig{}, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.device = flagDevice
		case "cs":
			cfg.csPin = flagCSPin
		case "ip":
			cfg.ip = flagIP
		case "gateway":
			cfg.gateway = flagGateway
		case "subnet":
			cfg.subnet = flagSubnet
		case "mac":
			cfg.mac = flagMAC
		case "port":
			cfg.port = uint16(flagPort) //nolint:gosec // range checked below
		case "debug":
			cfg.debug = flagDebug
		case "echo":
			cfg.echo = flagEcho
		case "log-dir":
			cfg.sessionLogDir = flagLogDir
		}
	})
	if flagPort > 0xFFFF {
		return appConfig{}, fmt.Errorf("port %d out of range", flagPort)
	}
	cfg.sendTo = flagSend
	cfg.data = flagData

	if cfg.debug {
		w5500.SetDebugEnabled(true)
		syncutil.SetLockTimeout(debugLockTimeout)
	}
	return cfg, nil
}

func connectOptions(cfg appConfig) []w5500.ConnectOption {
	if cfg.device == "" {
		return []w5500.ConnectOption{
			w5500.WithAutoDetection(),
			w5500.WithBusFromDeviceFactory(detectspi.OpenDevice),
		}
	}

	spiOpts := []spi.Option{spi.WithFrequency(physic.Frequency(cfg.frequencyMHz) * physic.MegaHertz)}
	if cfg.csPin != "" {
		spiOpts = append(spiOpts, spi.WithChipSelectPin(cfg.csPin))
	}
	return []w5500.ConnectOption{
		w5500.WithBusFactory(func(path string) (w5500.Bus, error) {
			return spi.New(path, spiOpts...)
		}),
	}
}

func run(ctx context.Context, cfg appConfig, logger zerolog.Logger) error {
	network, err := cfg.network()
	if err != nil {
		return err
	}

	if cfg.sessionLogDir != "" {
		path, err := w5500.InitSessionLog(cfg.sessionLogDir)
		if err != nil {
			return err
		}
		defer func() { _ = w5500.CloseSessionLog() }()
		logger.Info().Str("path", path).Msg("session log enabled")
	}

	device, err := w5500.ConnectDevice(ctx, cfg.device, network, connectOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = device.Close() }()

	if up, err := device.LinkUp(); err == nil {
		logger.Info().Str("ip", network.IP.String()).Bool("link", up).Msg("chip initialized")
	}

	udp, err := device.OpenUDP(cfg.port, cfg.udpConfig())
	if err != nil {
		return fmt.Errorf("open udp: %w", err)
	}
	defer func() { _ = device.CloseUDP(udp) }()

	if cfg.sendTo != "" {
		return sendOnce(ctx, device, udp, cfg, logger)
	}
	return serve(ctx, device, udp, cfg, logger)
}

func sendOnce(ctx context.Context, device *w5500.Device, udp *w5500.UDPSocket, cfg appConfig, logger zerolog.Logger) error {
	dst, err := netip.ParseAddrPort(cfg.sendTo)
	if err != nil {
		return fmt.Errorf("send target: %w", err)
	}
	if err := udp.Send(ctx, device.Bus(), dst, []byte(cfg.data)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	logger.Info().Str("dst", dst.String()).Int("bytes", len(cfg.data)).Msg("datagram sent")
	return nil
}

func serve(ctx context.Context, device *w5500.Device, udp *w5500.UDPSocket, cfg appConfig, logger zerolog.Logger) error {
	session, err := polling.NewSession(device.Bus(), udp, cfg.pollingConfig())
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	session.SetLinkMonitor(device)
	session.OnLinkChange = func(state polling.LinkState) {
		logger.Info().Str("link", state.String()).Msg("link changed")
	}
	session.OnSleepDetected = func(elapsed time.Duration) {
		logger.Warn().Dur("gap", elapsed).Msg("host slept between polls")
	}
	session.OnDatagram = func(d polling.Datagram) error {
		logger.Info().
			Str("src", d.Source.String()).
			Int("bytes", len(d.Payload)).
			Hex("payload", d.Payload).
			Msg("datagram received")
		if !cfg.echo {
			return nil
		}
		if err := session.Send(ctx, d.Source, d.Payload); err != nil {
			logger.Warn().Err(err).Msg("echo failed")
		}
		return nil
	}

	logger.Info().Uint16("port", cfg.port).Msg("listening")
	err = session.Run(ctx)
	stats := session.Stats()
	logger.Info().Uint64("datagrams", stats.Datagrams).Uint64("sent", stats.Sent).Msg("session stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	flag.Parse()

	cfg, err := parseConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(os.Stdout, "w5500ctl", cfg.debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("w5500ctl failed")
		stop()
		os.Exit(1)
	}
}
