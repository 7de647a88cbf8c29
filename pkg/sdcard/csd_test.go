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

import "testing"

// TestCSDv1SectorCountStraddlesBytes9And10 exercises the exact CSD v1
// literal values this project resolved its C_SIZE_MULT byte-straddling
// question against: C_SIZE=0x0F23, C_SIZE_MULT=7, READ_BL_LEN=9. Before
// this test, no case in the suite ever set a nonzero C_SIZE_MULT, so the
// (csd[9]&0x03)<<1 | (csd[10]>>7)&0x01 formula's high bit (csd[10] bit 7)
// went unexercised.
func TestCSDv1SectorCountStraddlesBytes9And10(t *testing.T) {
	var csd [16]byte
	csd[0] = 0x00 // CSD structure version 0 -> CSD v1
	csd[5] = 9    // READ_BL_LEN = 9
	csd[6] = 0x03 // C_SIZE bits [11:10]
	csd[7] = 0xC8 // C_SIZE bits [9:2]
	csd[8] = 0xC0 // C_SIZE bits [1:0] in bits [7:6]
	csd[9] = 0x03 // C_SIZE_MULT bits [2:1]
	csd[10] = 0x80 // C_SIZE_MULT bit [0]

	got := csdSectorCount(csd)
	// (C_SIZE + 1) << (C_SIZE_MULT + READ_BL_LEN - 7) = 0x0F24 << 9 = 0x1E4800.
	const want = 0x1E4800
	if got != want {
		t.Errorf("csdSectorCount() = 0x%X, want 0x%X", got, want)
	}
}
