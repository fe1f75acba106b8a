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

package spi

import (
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-w5500/internal/syncutil"
)

// maxTraceData caps how many data bytes one trace entry keeps.
const maxTraceData = 16

type traceEntry struct {
	err    error
	data   []byte
	size   int
	offset uint16
	block  uint8
	write  bool
}

func (e traceEntry) String() string {
	dir := "RD"
	if e.write {
		dir = "WR"
	}
	s := fmt.Sprintf("%s block 0x%02X offset 0x%04X len %d: % X", dir, e.block, e.offset, e.size, e.data)
	if e.size > len(e.data) {
		s += " ..."
	}
	if e.err != nil {
		s += " (" + e.err.Error() + ")"
	}
	return s
}

// traceBuffer keeps the most recent frames so a failed transfer can be
// reported with what led up to it.
type traceBuffer struct {
	entries []traceEntry
	next    int
	full    bool
	mu      syncutil.Mutex
}

// newTraceBuffer returns nil for size zero; a nil buffer records nothing.
func newTraceBuffer(size int) *traceBuffer {
	if size == 0 {
		return nil
	}
	return &traceBuffer{entries: make([]traceEntry, size)}
}

func (b *traceBuffer) record(write bool, block uint8, offset uint16, data []byte, err error) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := data
	if len(kept) > maxTraceData {
		kept = kept[:maxTraceData]
	}
	b.entries[b.next] = traceEntry{
		write:  write,
		block:  block,
		offset: offset,
		size:   len(data),
		data:   append([]byte(nil), kept...),
		err:    err,
	}
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// snapshot returns the recorded entries oldest first.
func (b *traceBuffer) snapshot() []traceEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]traceEntry(nil), b.entries[:b.next]...)
	}
	out := make([]traceEntry, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	return append(out, b.entries[:b.next]...)
}

func (b *traceBuffer) wrap(port string, err error) error {
	if b == nil {
		return err
	}
	entries := b.snapshot()
	frames := make([]string, len(entries))
	for i, e := range entries {
		frames[i] = e.String()
	}
	return &TraceError{Err: err, Port: port, Frames: frames}
}

// TraceError is a transfer error carrying the frames that preceded it.
type TraceError struct {
	Err    error
	Port   string
	Frames []string
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("SPI %s: %v", e.Port, e.Err)
}

// Unwrap returns the transfer error.
func (e *TraceError) Unwrap() error {
	return e.Err
}

// Trace formats the recorded frames, one per line.
func (e *TraceError) Trace() string {
	var sb strings.Builder
	for _, f := range e.Frames {
		_, _ = sb.WriteString(f)
		_ = sb.WriteByte('\n')
	}
	return sb.String()
}
