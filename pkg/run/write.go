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

package run

import (
	"fmt"
	"os"

	"github.com/tinyfs/picosd/pkg/blockdev"
	"github.com/tinyfs/picosd/pkg/bus"
	"github.com/tinyfs/picosd/pkg/sdcard"
)

//
func NewWrite() *Write {

	w := &Write{}
	w.Runner = *NewRunner(
		"write -d|--device {serial port} -l|--lba {sector} -i|--in {file}",
		"write a file's bytes to raw sectors on the card",
		`Use the write command to write a file's contents to the card starting at lba.
The file's length is rounded up to a whole number of 512-byte sectors, zero-padding
the final sector as needed.`,
		"", runnerHelpEpilogue, w.Run)

	w.AddSetting(&w.Device, "device", "d", "PICOSD_DEVICE", nil,
		"serial port device for the SPI bridge", true)
	w.AddSetting(&w.LBA, "lba", "l", "", 0, "starting sector", false)
	w.AddSetting(&w.In, "in", "i", "", nil, "input file", true)

	return w
}

//
type Write struct {
	Runner
	Device string
	LBA    int
	In     string
}

//
func (w *Write) Run() error {

	w.ParseSettings()

	data, err := os.ReadFile(w.In)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	count := (len(data) + sdcard.SectorSize - 1) / sdcard.SectorSize
	buf := make([]byte, count*sdcard.SectorSize)
	copy(buf, data)

	link, err := bus.OpenSerialBus(w.Device)
	if err != nil {
		return err
	}
	defer link.Close()

	engine := sdcard.New(link)
	if err := engine.Init(); err != nil {
		return err
	}
	dev := blockdev.New(engine)
	if err := dev.Init(0); err != nil {
		return err
	}

	return dev.Write(0, buf, uint32(w.LBA), uint32(count))
}
