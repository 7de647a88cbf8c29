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

package control

// Status is the JSON shape returned by GET /status: card identity plus
// mount state.
type Status struct {
	CardPresent bool   `json:"cardPresent"`
	Mounted     bool   `json:"mounted"`
	SDHC        bool   `json:"sdhc"`
	SectorCount uint32 `json:"sectorCount"`
	LastError   string `json:"lastError"`
}

// SectorDump is the JSON shape returned by GET /sector/{n}: a hex dump of
// one 512-byte sector, for bench debugging without pulling the card.
type SectorDump struct {
	Sector uint32 `json:"sector"`
	Hex    string `json:"hex"`
}

// ConfigRequest is the JSON body PUT /config accepts to toggle CRC checking
// or change the SPI baud rate at runtime.
type ConfigRequest struct {
	CRCEnabled *bool `json:"crcEnabled,omitempty"`
	BaudHz     *int  `json:"baudHz,omitempty"`
}
