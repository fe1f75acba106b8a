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

package w5500

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Protocol errors
var (
	// ErrSendTimeout is returned when the send-complete interrupt does not
	// appear within the configured number of polls.
	ErrSendTimeout = errors.New("send completion timeout")
	// ErrWouldBlock is returned by Receive when no complete datagram is buffered.
	ErrWouldBlock = errors.New("no datagram ready")
)

// Parameter errors - not retryable
var (
	ErrInvalidSocket     = errors.New("invalid socket index")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidBufferSize = errors.New("invalid socket buffer size")
	ErrDataTooLarge      = errors.New("data too large")
)

// Device errors
var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrNotInitialized      = errors.New("device not initialized")
	ErrNoSocketAvailable   = errors.New("no socket available")
	ErrSocketNotCheckedOut = errors.New("socket not checked out")
	ErrResetTimeout        = errors.New("chip reset did not complete")
)

// VersionError reports a chip whose version register does not identify a W5500.
type VersionError struct {
	Got  uint8
	Want uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("unexpected chip version 0x%02X (want 0x%02X)", e.Got, e.Want)
}

// Unwrap lets errors.Is match ErrDeviceNotFound.
func (*VersionError) Unwrap() error {
	return ErrDeviceNotFound
}

// IsRetryable returns true if repeating the same call later may succeed.
// The driver never retries on its own; this is a hint for callers.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrSendTimeout),
		errors.Is(err, ErrWouldBlock),
		errors.Is(err, ErrNoSocketAvailable):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the bus or chip is gone and
// further operations are pointless.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if isDeviceGoneError(err) {
		return true
	}
	switch {
	case errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors raised by a spidev node whose
// controller or device disappeared mid-transfer.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}
