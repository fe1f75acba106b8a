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
	"errors"
	"sync"

	"github.com/ZaparooProject/go-w5500/register"
)

// ErrMockClosed is returned by a MockBus after Close.
var ErrMockClosed = errors.New("mock bus closed")

// BusOp is one frame seen by a MockBus.
type BusOp struct {
	Data   []byte
	Offset uint16
	Block  uint8
	Write  bool
}

// Address returns the register address the frame targeted.
func (o BusOp) Address() register.Address {
	return register.Address{Block: o.Block, Offset: o.Offset}
}

// MockBus provides a scripted Bus for testing. Reads are answered from
// queued responses for the exact address first, then from whatever was last
// written there, then with zeros. Every frame is recorded.
type MockBus struct {
	reads    map[register.Address][][]byte
	memory   map[register.Address][]byte
	errorMap map[register.Address]error
	ops      []BusOp
	mu       sync.RWMutex
	failNext error
	closed   bool
}

// NewMockBus creates a new mock bus
func NewMockBus() *MockBus {
	return &MockBus{
		reads:    make(map[register.Address][][]byte),
		memory:   make(map[register.Address][]byte),
		errorMap: make(map[register.Address]error),
	}
}

// ReadFrame implements Bus
func (m *MockBus) ReadFrame(block uint8, offset uint16, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := register.Address{Block: block, Offset: offset}
	if err := m.checkErrorLocked(addr); err != nil {
		return err
	}

	clear(buf)
	if queue := m.reads[addr]; len(queue) > 0 {
		copy(buf, queue[0])
		m.reads[addr] = queue[1:]
	} else if stored, ok := m.memory[addr]; ok {
		copy(buf, stored)
	}
	m.ops = append(m.ops, BusOp{Block: block, Offset: offset, Data: append([]byte(nil), buf...)})
	return nil
}

// WriteFrame implements Bus
func (m *MockBus) WriteFrame(block uint8, offset uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := register.Address{Block: block, Offset: offset}
	if err := m.checkErrorLocked(addr); err != nil {
		return err
	}

	stored := append([]byte(nil), data...)
	m.memory[addr] = stored
	m.ops = append(m.ops, BusOp{Block: block, Offset: offset, Data: stored, Write: true})
	return nil
}

func (m *MockBus) checkErrorLocked(addr register.Address) error {
	if m.closed {
		return ErrMockClosed
	}
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	if err, exists := m.errorMap[addr]; exists {
		return err
	}
	return nil
}

// Close makes every later frame fail with ErrMockClosed
func (m *MockBus) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Test helper methods

// QueueRead queues responses returned, in order, by reads at addr
func (m *MockBus) QueueRead(addr register.Address, responses ...[]byte) {
	m.mu.Lock()
	m.reads[addr] = append(m.reads[addr], responses...)
	m.mu.Unlock()
}

// SetMemory sets the bytes returned by reads at addr once its queue is empty
func (m *MockBus) SetMemory(addr register.Address, data []byte) {
	m.mu.Lock()
	m.memory[addr] = append([]byte(nil), data...)
	m.mu.Unlock()
}

// SetError configures an error returned by every frame at addr
func (m *MockBus) SetError(addr register.Address, err error) {
	m.mu.Lock()
	m.errorMap[addr] = err
	m.mu.Unlock()
}

// ClearError removes error injection for addr
func (m *MockBus) ClearError(addr register.Address) {
	m.mu.Lock()
	delete(m.errorMap, addr)
	m.mu.Unlock()
}

// FailNext makes the next frame, at any address, return err
func (m *MockBus) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

// Ops returns every recorded frame
func (m *MockBus) Ops() []BusOp {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]BusOp(nil), m.ops...)
}

// Writes returns the recorded write frames
func (m *MockBus) Writes() []BusOp {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var writes []BusOp
	for _, op := range m.ops {
		if op.Write {
			writes = append(writes, op)
		}
	}
	return writes
}

// CountReads returns how many reads hit addr
func (m *MockBus) CountReads(addr register.Address) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, op := range m.ops {
		if !op.Write && op.Address() == addr {
			count++
		}
	}
	return count
}

// Reset clears recorded frames and error injection, keeping memory
func (m *MockBus) Reset() {
	m.mu.Lock()
	m.ops = nil
	m.errorMap = make(map[register.Address]error)
	m.failNext = nil
	m.closed = false
	m.mu.Unlock()
}
