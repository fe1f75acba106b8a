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

package register

import "fmt"

// Protocol is the value written to a socket's mode register.
type Protocol uint8

const (
	ProtocolClosed Protocol = 0x00
	ProtocolTCP    Protocol = 0x01
	ProtocolUDP    Protocol = 0x02
	ProtocolMACRaw Protocol = 0x04
)

func (p Protocol) String() string {
	switch p {
	case ProtocolClosed:
		return "closed"
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolMACRaw:
		return "macraw"
	default:
		return fmt.Sprintf("protocol(0x%02X)", uint8(p))
	}
}

// InterruptFlag is one bit of a socket's interrupt register.
type InterruptFlag uint8

const (
	InterruptConnected    InterruptFlag = 0x01
	InterruptDisconnected InterruptFlag = 0x02
	InterruptReceive      InterruptFlag = 0x04
	InterruptTimeout      InterruptFlag = 0x08
	InterruptSendOK       InterruptFlag = 0x10
)

// InterruptAll covers every socket interrupt bit.
const InterruptAll = InterruptConnected | InterruptDisconnected | InterruptReceive |
	InterruptTimeout | InterruptSendOK

func (f InterruptFlag) String() string {
	switch f {
	case InterruptConnected:
		return "connected"
	case InterruptDisconnected:
		return "disconnected"
	case InterruptReceive:
		return "receive"
	case InterruptTimeout:
		return "timeout"
	case InterruptSendOK:
		return "send-ok"
	default:
		return fmt.Sprintf("interrupt(0x%02X)", uint8(f))
	}
}

// Command is a value written to a socket's command register.
type Command uint8

const (
	CommandOpen       Command = 0x01
	CommandListen     Command = 0x02
	CommandConnect    Command = 0x04
	CommandDisconnect Command = 0x08
	CommandClose      Command = 0x10
	CommandSend       Command = 0x20
	CommandReceive    Command = 0x40
)

func (c Command) String() string {
	switch c {
	case CommandOpen:
		return "open"
	case CommandListen:
		return "listen"
	case CommandConnect:
		return "connect"
	case CommandDisconnect:
		return "disconnect"
	case CommandClose:
		return "close"
	case CommandSend:
		return "send"
	case CommandReceive:
		return "receive"
	default:
		return fmt.Sprintf("command(0x%02X)", uint8(c))
	}
}

// Status is the read-only socket status register value.
type Status uint8

const (
	StatusClosed      Status = 0x00
	StatusInit        Status = 0x13
	StatusListen      Status = 0x14
	StatusEstablished Status = 0x17
	StatusCloseWait   Status = 0x1C
	StatusUDP         Status = 0x22
	StatusMACRaw      Status = 0x42
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusInit:
		return "init"
	case StatusListen:
		return "listen"
	case StatusEstablished:
		return "established"
	case StatusCloseWait:
		return "close-wait"
	case StatusUDP:
		return "udp"
	case StatusMACRaw:
		return "macraw"
	default:
		return fmt.Sprintf("status(0x%02X)", uint8(s))
	}
}
