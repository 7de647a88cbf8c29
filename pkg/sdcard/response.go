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

package sdcard

import (
	"time"

	"github.com/tinyfs/picosd/pkg/bus"
)

// sendCommand transmits a six-byte command packet and polls for the R1
// byte that follows it. CMD12 requires one stuff byte clocked between the
// packet and the response; every other command polls immediately. Ncr
// (response latency) is bounded at responsePollMax filler bytes.
func (e *Engine) sendCommand(cmd byte, arg uint32) (byte, error) {
	pkt := buildPacket(cmd, arg, e.crcEnabled)
	var discard [6]byte
	if err := e.bus.Transfer(pkt[:], discard[:]); err != nil {
		return 0, err
	}

	if cmd == cmdStopTransmission {
		if err := bus.WriteFiller(e.bus, 1); err != nil {
			return 0, err
		}
	}

	r := byte(0xFF)
	for i := 0; i < responsePollMax; i++ {
		b, err := bus.ReadByte(e.bus)
		if err != nil {
			return 0, err
		}
		r = b
		if r&r1WaitingBit == 0 {
			break
		}
	}
	return r, nil
}

// readR3R7 reads the four trailing bytes of an R3 (READ_OCR) or R7
// (SEND_IF_COND) response. Must be called immediately after sendCommand
// returns the leading R1 byte for one of those two commands.
func (e *Engine) readR3R7() ([4]byte, error) {
	tx := [4]byte{filler, filler, filler, filler}
	var rx [4]byte
	err := e.bus.Transfer(tx[:], rx[:])
	return rx, err
}

// waitForDataToken polls for the data start token, returning ErrOutOfRange
// et al. immediately on an error token, or ErrTimeout once deadline
// passes without seeing either.
func (e *Engine) waitForDataToken(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		tok, err := bus.ReadByte(e.bus)
		if err != nil {
			return err
		}
		if tok == tokenStartSingle {
			return nil
		}
		if tok != filler {
			return errorTokenToError(tok)
		}
	}
	return ErrTimeout
}

// waitReady polls MISO until the card stops driving it busy (0x00) and
// releases it back to the idle-high 0xFF level.
func (e *Engine) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b, err := bus.ReadByte(e.bus)
		if err != nil {
			return err
		}
		if b == filler {
			return nil
		}
	}
	return ErrTimeout
}
