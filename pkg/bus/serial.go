/*
   picosd - SD/SPI card driver and FAT block device adapter
   Copyright (c) 2026, the picosd authors

   This file is part of picosd.

   picosd is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   picosd is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with picosd. If not, see <http://www.gnu.org/licenses/>.
*/

package bus

import (
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
)

// initBaud is the rate OpenSerialBus configures the port at before the SD
// protocol engine has negotiated the card's operational speed via SetBaud.
const initBaud = 400_000

// Wire opcodes understood by the serial-attached bridge on the other end
// of the link. The bridge owns the actual SPI pins (SCLK/MOSI/MISO/CS) and
// the card-detect GPIO; picosd only ever sees a byte stream.
const (
	opAssertCS   byte = 0x01
	opDeassertCS byte = 0x02
	opTransfer   byte = 0x03
	opDetect     byte = 0x04
)

// SerialBus drives an SD card over a serial-attached SPI bridge, using the
// same jacobsa/go-serial transport the rest of this project's ancestry
// uses for its adapter link. Every bus operation is framed as a one-byte
// opcode, so AssertCS/DeassertCS/CardDetect share the wire with Transfer
// without needing separate GPIO lines.
type SerialBus struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	name string
}

// OpenSerialBus opens the named serial port and returns a Bus backed by
// it. The port is not configured until Configure is called.
func OpenSerialBus(portName string) (*SerialBus, error) {
	port, err := openPort(portName, initBaud)
	if err != nil {
		return nil, fmt.Errorf("open serial bus %s: %w", portName, err)
	}
	return &SerialBus{port: port, name: portName}, nil
}

func openPort(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        name,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
}

func (s *SerialBus) Configure(baud int) error {
	return s.SetBaud(baud)
}

// SetBaud reopens the underlying serial port at the new baud rate.
// jacobsa/go-serial has no live baud-rate change, and the bridge's own
// SPI clock divider is derived from the link speed, so a rate switch is a
// close-then-reopen rather than an in-band command.
func (s *SerialBus) SetBaud(baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		if err := s.port.Close(); err != nil {
			return fmt.Errorf("close serial bus for baud change: %w", err)
		}
	}
	port, err := openPort(s.name, baud)
	if err != nil {
		return fmt.Errorf("reopen serial bus at %d baud: %w", baud, err)
	}
	s.port = port
	return nil
}

func (s *SerialBus) AssertCS() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send([]byte{opAssertCS})
}

func (s *SerialBus) DeassertCS() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send([]byte{opDeassertCS})
}

func (s *SerialBus) send(frame []byte) {
	// Errors here surface on the next Transfer/CardDetect call, which is
	// where callers actually check for them; CS toggling has no return
	// value in the Bus interface to report through.
	_, _ = s.port.Write(frame)
}

// CardDetect asks the bridge to sample its detect GPIO and reports what
// it says. A read error is treated as "not present" rather than panicking
// a caller that doesn't check errors on this method.
func (s *SerialBus) CardDetect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.port.Write([]byte{opDetect}); err != nil {
		return false
	}
	var reply [1]byte
	if _, err := io.ReadFull(s.port, reply[:]); err != nil {
		return false
	}
	return reply[0] == 1
}

// Transfer clocks len(tx) bytes over the bridge and reads back the same
// number of bytes it captured on MISO.
func (s *SerialBus) Transfer(tx, rx []byte) error {
	if len(tx) != len(rx) {
		return fmt.Errorf("bus: transfer length mismatch: tx=%d rx=%d", len(tx), len(rx))
	}
	if len(tx) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	header := []byte{opTransfer, byte(len(tx) >> 8), byte(len(tx))}
	if _, err := s.port.Write(header); err != nil {
		return fmt.Errorf("bus: write transfer header: %w", err)
	}
	if _, err := s.port.Write(tx); err != nil {
		return fmt.Errorf("bus: write transfer payload: %w", err)
	}
	if _, err := io.ReadFull(s.port, rx); err != nil {
		return fmt.Errorf("bus: read transfer response: %w", err)
	}
	return nil
}

func (s *SerialBus) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
