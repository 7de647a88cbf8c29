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

import "time"

// SectorSize is the sole unit of I/O above the bus. It is enforced by
// issuing SET_BLOCKLEN(512) during init and by sizing every read/write
// buffer around it.
const SectorSize = 512

// Bus baud rates: the SD card spec requires ≤400kHz until the card's
// capacity and CRC mode are known, after which the bus can run as fast as
// the card and wiring allow.
const (
	initBaud = 400_000
	fastBaud = 25_000_000
)

// Timing and retry budgets, ported from original_source/fatfs/sd_card.h.
const (
	powerUpDelay    = 10 * time.Millisecond
	cmd0RetryDelay  = 10 * time.Millisecond
	cmd0Retries     = 10
	initTimeout     = 1000 * time.Millisecond
	initPollPeriod  = time.Millisecond
	readTimeout     = 100 * time.Millisecond
	writeTimeout    = 500 * time.Millisecond
	readRetries     = 3
	responsePollMax = 8 // Ncr, max filler bytes while polling for R1
)

// SD command indices (SD Physical Layer Simplified Spec §4.7.4).
const (
	cmdGoIdleState      = 0  // CMD0
	cmdSendIfCond       = 8  // CMD8
	cmdSendCSD          = 9  // CMD9
	cmdStopTransmission = 12 // CMD12
	cmdSetBlockLen      = 16 // CMD16
	cmdReadSingleBlock  = 17 // CMD17
	cmdReadMultiBlock   = 18 // CMD18
	cmdWriteBlock       = 24 // CMD24
	cmdWriteMultiBlock  = 25 // CMD25
	cmdAppCmd           = 55 // CMD55
	cmdReadOCR          = 58 // CMD58
	cmdCRCOnOff         = 59 // CMD59
	acmdSetWrBlkEraseCt = 23 // ACMD23
	acmdSendOpCond      = 41 // ACMD41
)

// R1 response bit masks.
const (
	r1Idle        byte = 0x01
	r1EraseReset  byte = 0x02
	r1IllegalCmd  byte = 0x04
	r1CRCError    byte = 0x08
	r1EraseSeq    byte = 0x10
	r1AddrError   byte = 0x20
	r1ParamError  byte = 0x40
	r1ErrorMask   byte = 0xFE
	r1WaitingBit  byte = 0x80
)

// Data tokens.
const (
	tokenStartSingle byte = 0xFE
	tokenStartMulti  byte = 0xFC
	tokenStopTran    byte = 0xFD
)

// Error token sub-bits, checked most-specific first.
const (
	errTokenGeneral byte = 0x01
	errTokenCCErr   byte = 0x02
	errTokenECCFail byte = 0x04
	errTokenOOR     byte = 0x08
)

// Data response token: low 5 bits of the byte the card returns after a
// written data block.
const (
	dataRespMask     byte = 0x1F
	dataRespAccepted byte = 0b00101
	dataRespCrcErr   byte = 0b01011
	dataRespWriteErr byte = 0b01101
)

// filler is the idle-line byte clocked out whenever the engine only cares
// about what comes back on the data-in line.
const filler byte = 0xFF

// CardKind identifies the SD generation determined during Init.
type CardKind int

const (
	KindUnknown CardKind = iota
	KindSDSCv1
	KindSDSCv2
	KindSDHCXC
)

func (k CardKind) String() string {
	switch k {
	case KindSDSCv1:
		return "SDSC v1"
	case KindSDSCv2:
		return "SDSC v2"
	case KindSDHCXC:
		return "SDHC/SDXC"
	default:
		return "unknown"
	}
}

// Addressing distinguishes byte- from block-addressed cards.
type Addressing int

const (
	AddressingUnknown Addressing = iota
	ByteAddressed
	BlockAddressed
)
