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

// Package testing provides test utilities including a wire-level W5500
// simulator.
//
// VirtualW5500 implements the SPI exchange and chip select interfaces the
// driver's FourWire bus consumes. Every Tx is parsed as one variable-length
// frame: a 3-byte header followed by the data phase. Register side effects
// follow the W5500 datasheet:
//   - socket command register (Sn_CR) executes and reads back zero
//   - socket interrupt register (Sn_IR) is write-one-to-clear
//   - Sn_RX_RSR and Sn_TX_FSR are derived from the buffer pointers
//   - TX/RX buffer addresses wrap at the socket buffer size
package testing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/ZaparooProject/go-w5500/internal/frame"
	"github.com/ZaparooProject/go-w5500/internal/syncutil"
	"github.com/ZaparooProject/go-w5500/register"
	"periph.io/x/conn/v3/gpio"
)

const (
	commonSize   = 0x40
	socketRegLen = 0x30
	rxHeaderSize = 8
	// DefaultBufferSize mirrors the chip's 2 KiB per-socket reset default.
	DefaultBufferSize = 2048
)

// ErrInjected is the default error returned by FailAfter.
var ErrInjected = errors.New("injected bus failure")

// Datagram is a UDP datagram the simulator transmitted or holds for receive.
type Datagram struct {
	Payload []byte
	Addr    netip.AddrPort
}

// Frame records one frame seen on the wire.
type Frame struct {
	Data   []byte
	Header frame.Header
}

type socketState struct {
	rsrScript []uint16
	sent      []Datagram
	regs      [socketRegLen]byte
	tx        []byte
	rx        []byte
	// suppressSendOK keeps Sn_IR SEND_OK clear after SEND
	suppressSendOK bool
}

// VirtualW5500 simulates a W5500 at the SPI frame level.
type VirtualW5500 struct {
	failErr     error
	frames      []Frame
	csLog       []gpio.Level
	sockets     [register.MaxSockets]socketState
	common      [commonSize]byte
	mu          syncutil.Mutex
	failAfter   int
	resetReads  int
	resetDelay  int
	version     uint8
	csAsserted  bool
	requireCS   bool
	csViolation bool
}

// NewVirtualW5500 creates a simulator in its post-reset state.
func NewVirtualW5500() *VirtualW5500 {
	v := &VirtualW5500{
		version:   register.ChipVersion,
		failAfter: -1,
	}
	v.resetLocked()
	return v
}

func (v *VirtualW5500) resetLocked() {
	v.common = [commonSize]byte{}
	v.common[register.RetryTime] = 0x07
	v.common[register.RetryTime+1] = 0xD0
	v.common[register.RetryCount] = 0x08
	v.common[register.PhyConfiguration] = 0xB8 | register.PhyLinkUp
	for i := range v.sockets {
		s := &v.sockets[i]
		s.regs = [socketRegLen]byte{}
		s.regs[register.SnRxBufferSize] = DefaultBufferSize / 1024
		s.regs[register.SnTxBufferSize] = DefaultBufferSize / 1024
		s.tx = make([]byte, DefaultBufferSize)
		s.rx = make([]byte, DefaultBufferSize)
		s.rsrScript = nil
		s.sent = nil
		s.suppressSendOK = false
	}
}

// Out implements the chip select line. Low asserts.
func (v *VirtualW5500) Out(l gpio.Level) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.csLog = append(v.csLog, l)
	v.csAsserted = l == gpio.Low
	return nil
}

// Tx implements the full-duplex exchange. w carries the header and, for
// writes, the data phase; r receives the data phase of reads at the same
// positions.
func (v *VirtualW5500) Tx(w, r []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.failAfter == 0 {
		v.failAfter = -1
		return v.failErr
	}
	if v.failAfter > 0 {
		v.failAfter--
	}
	if v.requireCS && !v.csAsserted {
		v.csViolation = true
		return errors.New("virtual w5500: transfer with chip select released")
	}

	hdr, err := frame.DecodeHeader(w)
	if err != nil {
		return fmt.Errorf("virtual w5500: %w", err)
	}
	if hdr.Mode != frame.ModeVariable {
		return fmt.Errorf("virtual w5500: unsupported operation mode %d", hdr.Mode)
	}

	if hdr.Write {
		data := append([]byte(nil), w[frame.HeaderSize:]...)
		v.frames = append(v.frames, Frame{Header: hdr, Data: data})
		return v.write(hdr, data)
	}

	if len(r) < len(w) {
		return fmt.Errorf("virtual w5500: read buffer %d shorter than frame %d", len(r), len(w))
	}
	clear(r[:frame.HeaderSize])
	out := r[frame.HeaderSize:len(w)]
	if err := v.read(hdr, out); err != nil {
		return err
	}
	v.frames = append(v.frames, Frame{Header: hdr, Data: append([]byte(nil), out...)})
	return nil
}

// decodeBlock resolves a block-select into the common block or a socket
// sub-block. kind is 1 for registers, 2 for TX buffer, 3 for RX buffer.
func decodeBlock(block uint8) (socket, kind int, err error) {
	if block == register.CommonBlock {
		return -1, 0, nil
	}
	socket = int(block-1) / 4
	kind = int(block-1)%4 + 1
	if kind == 4 || socket >= register.MaxSockets {
		return 0, 0, fmt.Errorf("virtual w5500: reserved block 0x%02X", block)
	}
	return socket, kind, nil
}

func (v *VirtualW5500) write(hdr frame.Header, data []byte) error {
	sock, kind, err := decodeBlock(hdr.Block)
	if err != nil {
		return err
	}
	if kind > 1 && v.bufferFor(sock, kind) == nil {
		return fmt.Errorf("virtual w5500: socket %d has no buffer memory", sock)
	}
	switch kind {
	case 0:
		return v.writeCommon(hdr.Offset, data)
	case 1:
		return v.writeSocketRegs(sock, hdr.Offset, data)
	case 2:
		buf := v.sockets[sock].tx
		for i, b := range data {
			buf[(int(hdr.Offset)+i)%len(buf)] = b
		}
	case 3:
		buf := v.sockets[sock].rx
		for i, b := range data {
			buf[(int(hdr.Offset)+i)%len(buf)] = b
		}
	}
	return nil
}

func (v *VirtualW5500) read(hdr frame.Header, out []byte) error {
	sock, kind, err := decodeBlock(hdr.Block)
	if err != nil {
		return err
	}
	if kind > 1 && v.bufferFor(sock, kind) == nil {
		return fmt.Errorf("virtual w5500: socket %d has no buffer memory", sock)
	}
	switch kind {
	case 0:
		return v.readCommon(hdr.Offset, out)
	case 1:
		return v.readSocketRegs(sock, hdr.Offset, out)
	case 2:
		buf := v.sockets[sock].tx
		for i := range out {
			out[i] = buf[(int(hdr.Offset)+i)%len(buf)]
		}
	case 3:
		buf := v.sockets[sock].rx
		for i := range out {
			out[i] = buf[(int(hdr.Offset)+i)%len(buf)]
		}
	}
	return nil
}

func (v *VirtualW5500) bufferFor(sock, kind int) []byte {
	buf := v.sockets[sock].tx
	if kind == 3 {
		buf = v.sockets[sock].rx
	}
	if len(buf) == 0 {
		return nil
	}
	return buf
}

func (v *VirtualW5500) writeCommon(offset uint16, data []byte) error {
	if int(offset)+len(data) > commonSize {
		return fmt.Errorf("virtual w5500: common write past 0x%02X", commonSize)
	}
	for i, b := range data {
		addr := offset + uint16(i)
		switch addr {
		case register.Version:
			// read-only
		case register.Mode:
			if b&register.ModeReset != 0 {
				v.resetLocked()
				v.resetReads = v.resetDelay
				v.common[register.Mode] = register.ModeReset
				continue
			}
			v.common[addr] = b
		default:
			v.common[addr] = b
		}
	}
	return nil
}

func (v *VirtualW5500) readCommon(offset uint16, out []byte) error {
	if int(offset)+len(out) > commonSize {
		return fmt.Errorf("virtual w5500: common read past 0x%02X", commonSize)
	}
	for i := range out {
		addr := offset + uint16(i)
		switch addr {
		case register.Version:
			out[i] = v.version
		case register.Mode:
			out[i] = v.common[addr]
			if v.common[addr]&register.ModeReset != 0 {
				if v.resetReads <= 0 {
					v.common[addr] &^= register.ModeReset
				} else {
					v.resetReads--
				}
			}
		default:
			out[i] = v.common[addr]
		}
	}
	return nil
}

func (v *VirtualW5500) writeSocketRegs(sock int, offset uint16, data []byte) error {
	if int(offset)+len(data) > socketRegLen {
		return fmt.Errorf("virtual w5500: socket register write past 0x%02X", socketRegLen)
	}
	s := &v.sockets[sock]
	for i, b := range data {
		addr := offset + uint16(i)
		switch addr {
		case register.SnCommand:
			v.execute(sock, register.Command(b))
		case register.SnInterrupt:
			s.regs[addr] &^= b
		case register.SnStatus, register.SnTxFreeSize, register.SnTxFreeSize + 1,
			register.SnReceivedSize, register.SnReceivedSize + 1,
			register.SnTxReadPointer, register.SnTxReadPointer + 1,
			register.SnRxWritePointer, register.SnRxWritePointer + 1:
			// read-only for the host
		default:
			s.regs[addr] = b
		}
	}
	return nil
}

func (v *VirtualW5500) readSocketRegs(sock int, offset uint16, out []byte) error {
	if int(offset)+len(out) > socketRegLen {
		return fmt.Errorf("virtual w5500: socket register read past 0x%02X", socketRegLen)
	}
	s := &v.sockets[sock]

	var view [socketRegLen]byte
	copy(view[:], s.regs[:])
	size := uint16(len(s.tx))
	used := s.reg16(register.SnTxWritePointer) - s.reg16(register.SnTxReadPointer)
	binary.BigEndian.PutUint16(view[register.SnTxFreeSize:], size-used)

	rsr := s.reg16(register.SnRxWritePointer) - s.reg16(register.SnRxReadPointer)
	if offset <= register.SnReceivedSize && int(offset)+len(out) >= int(register.SnReceivedSize)+2 &&
		len(s.rsrScript) > 0 {
		rsr = s.rsrScript[0]
		s.rsrScript = s.rsrScript[1:]
	}
	binary.BigEndian.PutUint16(view[register.SnReceivedSize:], rsr)

	copy(out, view[offset:int(offset)+len(out)])
	return nil
}

func (s *socketState) reg16(offset uint16) uint16 {
	return binary.BigEndian.Uint16(s.regs[offset:])
}

func (s *socketState) setReg16(offset, value uint16) {
	binary.BigEndian.PutUint16(s.regs[offset:], value)
}

func (v *VirtualW5500) execute(sock int, cmd register.Command) {
	s := &v.sockets[sock]
	switch cmd {
	case register.CommandOpen:
		s.tx = make([]byte, int(s.regs[register.SnTxBufferSize])*1024)
		s.rx = make([]byte, int(s.regs[register.SnRxBufferSize])*1024)
		switch register.Protocol(s.regs[register.SnMode] & 0x0F) {
		case register.ProtocolUDP:
			s.regs[register.SnStatus] = byte(register.StatusUDP)
		case register.ProtocolTCP:
			s.regs[register.SnStatus] = byte(register.StatusInit)
		case register.ProtocolMACRaw:
			s.regs[register.SnStatus] = byte(register.StatusMACRaw)
		default:
			s.regs[register.SnStatus] = byte(register.StatusClosed)
		}
	case register.CommandClose:
		s.regs[register.SnStatus] = byte(register.StatusClosed)
	case register.CommandSend:
		v.transmit(s)
	case register.CommandReceive:
		// Space up to Sn_RX_RD is released; RSR is derived from the pointers.
	default:
		// TCP commands are accepted and ignored
	}
	s.regs[register.SnCommand] = 0
}

func (*VirtualW5500) transmit(s *socketState) {
	if len(s.tx) == 0 {
		return
	}
	rd := s.reg16(register.SnTxReadPointer)
	wr := s.reg16(register.SnTxWritePointer)
	n := int(wr - rd)
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = s.tx[(int(rd)+i)%len(s.tx)]
	}
	var ip [4]byte
	copy(ip[:], s.regs[register.SnDestinationIP:register.SnDestinationIP+4])
	addr := netip.AddrPortFrom(netip.AddrFrom4(ip), s.reg16(register.SnDestinationPort))
	s.sent = append(s.sent, Datagram{Addr: addr, Payload: payload})
	s.setReg16(register.SnTxReadPointer, wr)
	if !s.suppressSendOK {
		s.regs[register.SnInterrupt] |= byte(register.InterruptSendOK)
	}
}

// InjectDatagram places a datagram from src into the socket's RX buffer as
// the chip would on arrival: 8-byte header then payload at Sn_RX_WR,
// wrapping at the buffer end. It returns an error if the buffer lacks room.
func (v *VirtualW5500) InjectDatagram(sock int, src netip.AddrPort, payload []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := &v.sockets[sock]
	if len(s.rx) == 0 {
		return fmt.Errorf("virtual w5500: socket %d has no rx memory", sock)
	}
	total := rxHeaderSize + len(payload)
	wr := s.reg16(register.SnRxWritePointer)
	used := int(wr - s.reg16(register.SnRxReadPointer))
	if used+total > len(s.rx) {
		return fmt.Errorf("virtual w5500: rx buffer full (%d used, %d needed)", used, total)
	}

	record := make([]byte, 0, total)
	ip := src.Addr().As4()
	record = append(record, ip[:]...)
	record = binary.BigEndian.AppendUint16(record, src.Port())
	record = binary.BigEndian.AppendUint16(record, uint16(len(payload)))
	record = append(record, payload...)
	for i, b := range record {
		s.rx[(int(wr)+i)%len(s.rx)] = b
	}
	s.setReg16(register.SnRxWritePointer, wr+uint16(total))
	s.regs[register.SnInterrupt] |= byte(register.InterruptReceive)
	return nil
}

// Sent returns the datagrams transmitted by a socket.
func (v *VirtualW5500) Sent(sock int) []Datagram {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Datagram(nil), v.sockets[sock].sent...)
}

// SetPointers forces a socket's TX and RX pointer pairs, for testing
// buffer wrap-around. Both pointers of a pair get the same value.
func (v *VirtualW5500) SetPointers(sock int, tx, rx uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := &v.sockets[sock]
	s.setReg16(register.SnTxReadPointer, tx)
	s.setReg16(register.SnTxWritePointer, tx)
	s.setReg16(register.SnRxReadPointer, rx)
	s.setReg16(register.SnRxWritePointer, rx)
}

// Register16 returns a 16-bit socket register as the host would read it.
func (v *VirtualW5500) Register16(sock int, offset uint16) uint16 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sockets[sock].reg16(offset)
}

// Register returns a socket register byte.
func (v *VirtualW5500) Register(sock int, offset uint16) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sockets[sock].regs[offset]
}

// Common returns a copy of n common block bytes at offset.
func (v *VirtualW5500) Common(offset uint16, n int) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.common[offset:int(offset)+n]...)
}

// ScriptReceiveSize queues values returned by successive reads of a
// socket's received-size register, ahead of the pointer-derived value.
func (v *VirtualW5500) ScriptReceiveSize(sock int, samples ...uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sockets[sock].rsrScript = append(v.sockets[sock].rsrScript, samples...)
}

// SuppressSendComplete stops the socket from raising SEND_OK, simulating a
// stalled link.
func (v *VirtualW5500) SuppressSendComplete(sock int, suppress bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sockets[sock].suppressSendOK = suppress
}

// SetVersion changes the value of the version register.
func (v *VirtualW5500) SetVersion(version uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version = version
}

// SetResetDelay keeps the reset bit visible for n mode register reads on top
// of the first one after reset. A negative n keeps it set forever.
func (v *VirtualW5500) SetResetDelay(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n < 0 {
		n = int(^uint(0) >> 1)
	}
	v.resetDelay = n
}

// SetLinkUp sets the PHY link status bit.
func (v *VirtualW5500) SetLinkUp(up bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if up {
		v.common[register.PhyConfiguration] |= register.PhyLinkUp
	} else {
		v.common[register.PhyConfiguration] &^= register.PhyLinkUp
	}
}

// FailAfter makes the transfer after n successful ones return err (or
// ErrInjected when err is nil). The failing transfer has no effect.
func (v *VirtualW5500) FailAfter(n int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	v.failAfter = n
	v.failErr = err
}

// RequireChipSelect makes transfers fail unless chip select is asserted.
func (v *VirtualW5500) RequireChipSelect(require bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requireCS = require
}

// ChipSelectAsserted reports the current chip select state.
func (v *VirtualW5500) ChipSelectAsserted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.csAsserted
}

// ChipSelectLog returns every level driven on chip select.
func (v *VirtualW5500) ChipSelectLog() []gpio.Level {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]gpio.Level(nil), v.csLog...)
}

// Frames returns every frame seen so far.
func (v *VirtualW5500) Frames() []Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Frame(nil), v.frames...)
}

// ClearFrames empties the frame log.
func (v *VirtualW5500) ClearFrames() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames = nil
}
