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

package polling

import (
	"net/netip"
	"time"
)

// LinkState is the last observed Ethernet link status.
type LinkState int

const (
	LinkUnknown LinkState = iota
	LinkDown
	LinkUp
)

func (s LinkState) String() string {
	switch s {
	case LinkDown:
		return "down"
	case LinkUp:
		return "up"
	default:
		return "unknown"
	}
}

func linkStateOf(up bool) LinkState {
	if up {
		return LinkUp
	}
	return LinkDown
}

// Datagram is one received UDP datagram.
type Datagram struct {
	Received time.Time
	Payload  []byte
	Source   netip.AddrPort
}

// Stats counts session activity.
type Stats struct {
	LastReceived time.Time
	LastLink     time.Time
	Datagrams    uint64
	Bytes        uint64
	Polls        uint64
	Sent         uint64
	Link         LinkState
}

func (s *Stats) recordDatagram(d Datagram) {
	s.Datagrams++
	s.Bytes += uint64(len(d.Payload))
	s.LastReceived = d.Received
}
