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
	"fmt"

	"github.com/tinyfs/picosd/pkg/bus"
)

// ReadBlocks reads n contiguous 512-byte sectors starting at start into
// buf, which must be at least n*SectorSize bytes. n == 1 uses CMD17 and
// gets a bounded retry on transient errors; n > 1 uses CMD18 and always
// terminates with CMD12, whether or not every block was read cleanly.
func (e *Engine) ReadBlocks(start, n uint32, buf []byte) error {
	if n == 0 {
		return nil
	}
	if uint32(len(buf)) < n*SectorSize {
		return fmt.Errorf("sdcard: buffer too small for %d sectors", n)
	}

	if n == 1 {
		return e.readSingle(start, buf[:SectorSize])
	}
	return e.readMulti(start, n, buf)
}

func (e *Engine) readSingle(sector uint32, buf []byte) error {
	var err error
	for attempt := 0; attempt <= readRetries; attempt++ {
		err = e.readOneBlock(sector, buf)
		if err == nil {
			return nil
		}
		sdErr, ok := err.(Error)
		if !ok || !sdErr.transient() {
			break
		}
	}
	return e.fail(err)
}

func (e *Engine) readOneBlock(sector uint32, buf []byte) error {
	r, err := e.sendCommand(cmdReadSingleBlock, e.translateAddress(sector))
	if err != nil {
		return err
	}
	if r&r1ErrorMask != 0 {
		_ = bus.WriteFiller(e.bus, 1)
		return r1ToError(r)
	}

	if err := e.waitForDataToken(readTimeout); err != nil {
		return err
	}
	return e.readBlockPayload(buf)
}

// readBlockPayload reads the 512-byte data phase and its CRC-16 trailer,
// shared by single- and multi-block reads. SEND_CSD reads its 16-byte
// register in readCapacity instead.
func (e *Engine) readBlockPayload(buf []byte) error {
	fill := make([]byte, len(buf))
	for i := range fill {
		fill[i] = filler
	}
	if err := e.bus.Transfer(fill, buf); err != nil {
		return err
	}

	crcTx := [2]byte{filler, filler}
	var crcRx [2]byte
	if err := e.bus.Transfer(crcTx[:], crcRx[:]); err != nil {
		return err
	}
	if e.crcEnabled {
		got := uint16(crcRx[0])<<8 | uint16(crcRx[1])
		if got != crc16CCITT(buf) {
			return ErrCrcData
		}
	}
	return nil
}

func (e *Engine) readMulti(start, n uint32, buf []byte) error {
	r, err := e.sendCommand(cmdReadMultiBlock, e.translateAddress(start))
	if err != nil {
		return e.fail(err)
	}
	if r&r1ErrorMask != 0 {
		_ = bus.WriteFiller(e.bus, 1)
		return e.fail(r1ToError(r))
	}

	var loopErr error
	for i := uint32(0); i < n; i++ {
		block := buf[i*SectorSize : (i+1)*SectorSize]
		if loopErr = e.waitForDataToken(readTimeout); loopErr != nil {
			break
		}
		if loopErr = e.readBlockPayload(block); loopErr != nil {
			break
		}
	}

	// STOP_TRANSMISSION always runs, whether or not the loop above
	// succeeded, so the card is left in a clean state either way.
	stopR, stopErr := e.sendCommand(cmdStopTransmission, 0)
	var readyErr error
	if stopErr == nil {
		readyErr = e.waitReady(readTimeout)
	}
	_ = bus.WriteFiller(e.bus, 1)

	if loopErr != nil {
		return e.fail(loopErr)
	}
	if stopErr != nil {
		return e.fail(stopErr)
	}
	if stopR&r1ErrorMask != 0 {
		return e.fail(r1ToError(stopR))
	}
	if readyErr != nil {
		return e.fail(readyErr)
	}
	e.lastError = ErrNone
	return nil
}
