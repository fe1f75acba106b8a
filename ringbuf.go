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

// Socket buffers are addressed by 16-bit circular pointers that run on past
// the physical buffer end. The physical offset is the pointer modulo the
// buffer size; an access crossing the end splits into a tail piece and a
// piece from offset zero.

// span is one contiguous piece of a wrapped buffer access: data[lo:hi] maps
// to the physical buffer starting at offset.
type span struct {
	offset uint16
	lo, hi int
}

// wrapSpans splits an access of length bytes at pointer into contiguous
// pieces for a buffer of size bytes, which must be a power of two. Lengths
// up to size produce at most two pieces.
func wrapSpans(pointer uint16, length int, size uint16) []span {
	if length <= 0 {
		return nil
	}
	spans := make([]span, 0, 2)
	offset := pointer & (size - 1)
	for done := 0; done < length; {
		n := min(length-done, int(size)-int(offset))
		spans = append(spans, span{offset: offset, lo: done, hi: done + n})
		done += n
		offset = 0
	}
	return spans
}

// writeWrapped writes data into a circular buffer block starting at pointer.
func writeWrapped(bus Bus, block uint8, pointer, size uint16, data []byte) error {
	for _, sp := range wrapSpans(pointer, len(data), size) {
		if err := bus.WriteFrame(block, sp.offset, data[sp.lo:sp.hi]); err != nil {
			return err //nolint:wrapcheck // bus errors surface unchanged
		}
	}
	return nil
}

// readWrapped fills buf from a circular buffer block starting at pointer.
func readWrapped(bus Bus, block uint8, pointer, size uint16, buf []byte) error {
	for _, sp := range wrapSpans(pointer, len(buf), size) {
		if err := bus.ReadFrame(block, sp.offset, buf[sp.lo:sp.hi]); err != nil {
			return err //nolint:wrapcheck // bus errors surface unchanged
		}
	}
	return nil
}
