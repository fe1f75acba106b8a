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

import "github.com/ZaparooProject/go-w5500/internal/syncutil"

// SerializedBus gives one goroutine at a time exclusive use of a Bus.
// Single frames lock implicitly; Do holds the lock across a multi-frame
// operation such as a whole Send or Receive.
type SerializedBus struct {
	bus Bus
	mu  syncutil.Mutex
}

// NewSerializedBus wraps bus with an exclusive lock.
func NewSerializedBus(bus Bus) *SerializedBus {
	return &SerializedBus{bus: bus}
}

// ReadFrame implements Bus.
func (s *SerializedBus) ReadFrame(block uint8, offset uint16, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.ReadFrame(block, offset, buf)
}

// WriteFrame implements Bus.
func (s *SerializedBus) WriteFrame(block uint8, offset uint16, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.WriteFrame(block, offset, data)
}

// Do runs fn with the lock held. fn must use the Bus it is given, not s,
// or it will deadlock.
func (s *SerializedBus) Do(fn func(Bus) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.bus)
}
