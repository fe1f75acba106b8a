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

// Package polling runs a receive loop over a W5500 UDP socket and delivers
// datagrams to callbacks.
package polling

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-w5500"
	"github.com/ZaparooProject/go-w5500/internal/syncutil"
)

// ErrSessionClosed is returned by Run and Send after Close.
var ErrSessionClosed = errors.New("session closed")

// LinkMonitor reports the Ethernet link status. *w5500.Device satisfies it.
type LinkMonitor interface {
	LinkUp() (bool, error)
}

// Session polls one UDP socket for datagrams.
//
// Callbacks run on the goroutine that called Run. Send may be called from
// other goroutines; the session serializes bus access between the poll loop
// and senders.
type Session struct {
	lastPoll        time.Time
	lastLinkCheck   time.Time
	bus             w5500.Bus
	link            LinkMonitor
	OnDatagram      func(Datagram) error
	OnLinkChange    func(LinkState)
	OnSleepDetected func(elapsed time.Duration)
	socket          *w5500.UDPSocket
	config          *Config
	pauseChan       chan struct{}
	resumeChan      chan struct{}
	buf             []byte
	stats           Stats
	stateMutex      syncutil.RWMutex
	busMutex        syncutil.Mutex
	closed          atomic.Bool
	isPaused        atomic.Bool
}

// NewSession creates a session for socket on bus. A nil config uses
// DefaultConfig.
func NewSession(bus w5500.Bus, socket *w5500.UDPSocket, config *Config) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid polling config: %w", err)
	}
	return &Session{
		bus:        bus,
		socket:     socket,
		config:     config,
		buf:        make([]byte, config.BufferSize),
		pauseChan:  make(chan struct{}, 1),
		resumeChan: make(chan struct{}, 1),
	}, nil
}

// SetLinkMonitor enables periodic link checks reported through OnLinkChange.
func (s *Session) SetLinkMonitor(m LinkMonitor) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.link = m
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.stats
}

// Run polls until ctx is done, a callback fails, or the bus returns an
// error. Receive finding nothing is not an error.
func (s *Session) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.handleContextAndPause(ctx); err != nil {
			return err
		}
		if s.closed.Load() {
			return ErrSessionClosed
		}

		if err := s.pollOnce(); err != nil {
			return err
		}

		if err := s.waitForNextPollOrPause(ctx, ticker); err != nil {
			return err
		}
	}
}

// pollOnce drains up to MaxBatch datagrams and runs a due link check.
func (s *Session) pollOnce() error {
	now := time.Now()
	s.checkSleep(now)

	if err := s.checkLink(now); err != nil {
		return err
	}

	for range s.config.MaxBatch {
		d, err := s.receive()
		if errors.Is(err, w5500.ErrWouldBlock) {
			break
		}
		if err != nil {
			return fmt.Errorf("receive failed: %w", err)
		}

		s.stateMutex.Lock()
		s.stats.recordDatagram(d)
		callback := s.OnDatagram
		s.stateMutex.Unlock()

		if callback != nil {
			if err := safeCallCallback(callback, d); err != nil {
				return err
			}
		}
	}

	s.stateMutex.Lock()
	s.stats.Polls++
	s.stateMutex.Unlock()
	return nil
}

func (s *Session) receive() (Datagram, error) {
	s.busMutex.Lock()
	defer s.busMutex.Unlock()

	n, src, err := s.socket.Receive(s.bus, s.buf)
	if err != nil {
		return Datagram{}, err //nolint:wrapcheck // wrapped by caller
	}
	return Datagram{
		Payload:  append([]byte(nil), s.buf[:n]...),
		Source:   src,
		Received: time.Now(),
	}, nil
}

func (s *Session) checkSleep(now time.Time) {
	last := s.lastPoll
	s.lastPoll = now
	if last.IsZero() {
		return
	}
	elapsed := now.Sub(last)
	if !s.config.SleepDetection.DetectSleep(elapsed, s.config.PollInterval) {
		return
	}
	w5500.Debugf("polling: %s gap between polls, host likely slept", elapsed)
	if s.OnSleepDetected != nil {
		s.OnSleepDetected(elapsed)
	}
}

func (s *Session) checkLink(now time.Time) error {
	s.stateMutex.RLock()
	monitor := s.link
	s.stateMutex.RUnlock()
	if monitor == nil || s.config.LinkCheckInterval == 0 {
		return nil
	}
	if !s.lastLinkCheck.IsZero() && now.Sub(s.lastLinkCheck) < s.config.LinkCheckInterval {
		return nil
	}
	s.lastLinkCheck = now

	s.busMutex.Lock()
	up, err := monitor.LinkUp()
	s.busMutex.Unlock()
	if err != nil {
		return fmt.Errorf("link check failed: %w", err)
	}

	state := linkStateOf(up)
	s.stateMutex.Lock()
	changed := s.stats.Link != state
	s.stats.Link = state
	s.stats.LastLink = now
	callback := s.OnLinkChange
	s.stateMutex.Unlock()

	if changed {
		w5500.Debugf("polling: link %s", state)
		if callback != nil {
			callback(state)
		}
	}
	return nil
}

// Send transmits a datagram from the session's socket. It waits for any
// in-progress poll to release the bus.
func (s *Session) Send(ctx context.Context, dst netip.AddrPort, payload []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.busMutex.Lock()
	err := s.socket.Send(ctx, s.bus, dst, payload)
	s.busMutex.Unlock()
	if err != nil {
		return fmt.Errorf("send to %s failed: %w", dst, err)
	}

	s.stateMutex.Lock()
	s.stats.Sent++
	s.stateMutex.Unlock()
	return nil
}

// Pause temporarily stops the polling loop after the current poll.
func (s *Session) Pause() {
	if s.isPaused.CompareAndSwap(false, true) {
		select {
		case s.pauseChan <- struct{}{}:
		default:
		}
	}
}

// Resume restarts the polling loop after a pause
func (s *Session) Resume() {
	if s.isPaused.CompareAndSwap(true, false) {
		select {
		case s.resumeChan <- struct{}{}:
		default:
		}
	}
}

// Close stops the session. A running Run returns ErrSessionClosed before
// its next poll. The socket is left open.
func (s *Session) Close() error {
	s.closed.Store(true)
	s.Resume()
	return nil
}

func (s *Session) waitForNextPollOrPause(ctx context.Context, ticker *time.Ticker) error {
	select {
	case <-ticker.C:
		return nil
	case <-s.pauseChan:
		return s.waitForResume(ctx)
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context errors surface unchanged
	}
}

func (s *Session) handleContextAndPause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context errors surface unchanged
	case <-s.pauseChan:
		return s.waitForResume(ctx)
	default:
		return nil
	}
}

func (s *Session) waitForResume(ctx context.Context) error {
	select {
	case <-s.resumeChan:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context errors surface unchanged
	}
}

// safeCallCallback executes a callback with panic recovery
func safeCallCallback(callback func(Datagram) error, d Datagram) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("datagram callback panicked: %v", r)
		}
	}()
	if cbErr := callback(d); cbErr != nil {
		return fmt.Errorf("datagram callback failed: %w", cbErr)
	}
	return nil
}
