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

// WriteBlocks writes n contiguous 512-byte sectors from buf starting at
// start. n == 1 uses CMD24; n > 1 uses CMD25 preceded by an ACMD23
// pre-erase hint (best-effort, its failure is not fatal) and always
// terminated with the stop-transmission data token.
func (e *Engine) WriteBlocks(start, n uint32, buf []byte) error {
	if n == 0 {
		return nil
	}
	if uint32(len(buf)) < n*SectorSize {
		return fmt.Errorf("sdcard: buffer too small for %d sectors", n)
	}

	if n == 1 {
		return e.fail(e.writeOneBlock(start, buf[:SectorSize], tokenStartSingle))
	}
	return e.writeMulti(start, n, buf)
}

func (e *Engine) writeOneBlock(sector uint32, block []byte, token byte) error {
	r, err := e.sendCommand(cmdWriteBlock, e.translateAddress(sector))
	if err != nil {
		return err
	}
	if r&r1ErrorMask != 0 {
		_ = bus.WriteFiller(e.bus, 1)
		return r1ToError(r)
	}

	resp, err := e.sendDataBlock(block, token)
	if err != nil {
		return err
	}
	if err := bus.WriteFiller(e.bus, 1); err != nil {
		return err
	}
	if resp == dataRespCrcErr {
		return ErrCrcData
	}
	if resp != dataRespAccepted {
		return ErrWriteReject
	}
	return e.waitReady(writeTimeout)
}

// sendDataBlock clocks the Nwr dummy byte, the data token, the block
// itself, its CRC-16 trailer, and returns the data response token's low
// five bits. Shared by single- and multi-block writes.
func (e *Engine) sendDataBlock(block []byte, token byte) (byte, error) {
	if err := bus.WriteFiller(e.bus, 1); err != nil {
		return 0, err
	}
	if err := bus.WriteByte(e.bus, token); err != nil {
		return 0, err
	}

	discard := make([]byte, len(block))
	if err := e.bus.Transfer(block, discard); err != nil {
		return 0, err
	}

	crc := crc16CCITT(block)
	crcBytes := [2]byte{byte(crc >> 8), byte(crc)}
	if !e.crcEnabled {
		crcBytes = [2]byte{filler, filler}
	}
	var crcDiscard [2]byte
	if err := e.bus.Transfer(crcBytes[:], crcDiscard[:]); err != nil {
		return 0, err
	}

	resp, err := bus.ReadByte(e.bus)
	if err != nil {
		return 0, err
	}
	return resp & dataRespMask, nil
}

func (e *Engine) writeMulti(start, n uint32, buf []byte) error {
	r, err := e.sendCommand(cmdAppCmd, 0)
	if err != nil {
		return e.fail(err)
	}
	if err := bus.WriteFiller(e.bus, 1); err != nil {
		return e.fail(err)
	}
	if r&r1ErrorMask == 0 {
		// ACMD23 pre-erase hint: best-effort, ignore its own error.
		if _, err := e.sendCommand(acmdSetWrBlkEraseCt, n); err == nil {
			_ = bus.WriteFiller(e.bus, 1)
		}
	}

	r, err = e.sendCommand(cmdWriteMultiBlock, e.translateAddress(start))
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

		resp, sendErr := e.sendDataBlock(block, tokenStartMulti)
		if sendErr != nil {
			loopErr = sendErr
			break
		}
		if resp == dataRespCrcErr {
			loopErr = ErrCrcData
			break
		}
		if resp != dataRespAccepted {
			loopErr = ErrWriteReject
			break
		}
		if loopErr = e.waitReady(writeTimeout); loopErr != nil {
			break
		}
	}

	if err := bus.WriteByte(e.bus, tokenStopTran); err != nil {
		return e.fail(err)
	}
	if err := bus.WriteFiller(e.bus, 1); err != nil {
		return e.fail(err)
	}

	if loopErr != nil {
		return e.fail(loopErr)
	}
	if err := e.waitReady(writeTimeout); err != nil {
		return e.fail(err)
	}
	e.lastError = ErrNone
	return nil
}
