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

// Package bus owns the physical serial bus that carries SD/SPI traffic:
// byte-level full-duplex transfer, baud-rate control, chip-select, and
// card-detect. It knows nothing about the SD protocol itself.
package bus

// Bus is the contract the SD protocol engine (pkg/sdcard) drives. A real
// implementation talks to hardware (or, as here, to a serial-attached
// bridge that emulates the four SPI signals); a fake implementation can
// stand in for a card during tests.
type Bus interface {
	// Configure performs one-time setup and sets the initial baud rate.
	// Chip select is left deasserted.
	Configure(baud int) error

	// SetBaud atomically switches the bus to a new baud rate, e.g. from
	// the ≤400kHz init rate to the ≤25MHz operational rate.
	SetBaud(baud int) error

	// Transfer clocks len(tx) bytes, sending tx and capturing the
	// response into rx. tx and rx must be the same length. Either buffer
	// may be a filler-byte (0xFF) buffer for one-direction transfers.
	Transfer(tx, rx []byte) error

	// AssertCS and DeassertCS manipulate chip select.
	AssertCS()
	DeassertCS()

	// CardDetect samples the detect line. true means a card is present.
	CardDetect() bool

	// Close releases the underlying transport.
	Close() error
}

// WriteByte is a convenience for the common one-byte, one-direction
// transfer: clock b out, discard whatever comes back.
func WriteByte(b Bus, v byte) error {
	tx := [1]byte{v}
	var rx [1]byte
	return b.Transfer(tx[:], rx[:])
}

// ReadByte is a convenience for the common one-byte, one-direction
// transfer: clock a filler byte out, keep whatever comes back.
func ReadByte(b Bus) (byte, error) {
	tx := [1]byte{0xFF}
	var rx [1]byte
	if err := b.Transfer(tx[:], rx[:]); err != nil {
		return 0, err
	}
	return rx[0], nil
}

// WriteFiller clocks n filler bytes and discards the response. Used for
// the inter-command gap and Nwr/Nac dummy cycles the SD SPI protocol
// requires between phases.
func WriteFiller(b Bus, n int) error {
	tx := make([]byte, n)
	for i := range tx {
		tx[i] = 0xFF
	}
	rx := make([]byte, n)
	return b.Transfer(tx, rx)
}
