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

// Fixed CRC7 values for the two commands that must carry a valid CRC even
// while the bus is otherwise running in CRC-disabled mode: CMD0 (idle
// entry, before the card has any opinion about CRCs) and CMD8 (interface
// condition probe, which some cards reject unless the CRC is genuine).
const (
	crc0GoIdle    byte = 0x95
	crc0SendIfCond byte = 0x87
)

// buildPacket assembles the six-byte SD command frame: start/transmit
// bits, command index, 32-bit argument, and a CRC7 in the low seven bits
// of the last byte with the stop bit set. When crcEnabled is false the
// CRC is only meaningful for CMD0/CMD8, which carry a correct one
// regardless; other commands get a dummy CRC with the stop bit still set,
// which every SPI-mode card accepts once out of CRC-off idle state.
func buildPacket(cmd byte, arg uint32, crcEnabled bool) [6]byte {
	var pkt [6]byte
	pkt[0] = 0x40 | (cmd & 0x3F)
	pkt[1] = byte(arg >> 24)
	pkt[2] = byte(arg >> 16)
	pkt[3] = byte(arg >> 8)
	pkt[4] = byte(arg)

	switch {
	case cmd == cmdGoIdleState:
		pkt[5] = crc0GoIdle
	case cmd == cmdSendIfCond:
		pkt[5] = crc0SendIfCond
	case crcEnabled:
		pkt[5] = (crc7(pkt[:5]) << 1) | 0x01
	default:
		pkt[5] = 0xFF
	}
	return pkt
}
