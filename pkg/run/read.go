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
func NewRead() *Read {

	r := &Read{}
	r.Runner = *NewRunner(
		"read -d|--device {serial port} -l|--lba {sector} -n|--count {sectors} [-o|--out {file}]",
		"read raw sectors from the card",
		`Use the read command to read count sectors starting at lba directly from the
card, writing the bytes to stdout or, when --out is given, to a file.`,
		"", runnerHelpEpilogue, r.Run)

	r.AddSetting(&r.Device, "device", "d", "PICOSD_DEVICE", nil,
		"serial port device for the SPI bridge", true)
	r.AddSetting(&r.LBA, "lba", "l", "", 0, "starting sector", false)
	r.AddSetting(&r.Count, "count", "n", "", 1, "number of sectors to read", false)
	r.AddSetting(&r.Out, "out", "o", "", "", "output file; defaults to stdout", false)

	return r
}

//
type Read struct {
	Runner
	Device string
	LBA    int
	Count  int
	Out    string
}

//
func (r *Read) Run() error {

	r.ParseSettings()

	link, err := bus.OpenSerialBus(r.Device)
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

	buf := make([]byte, r.Count*sdcard.SectorSize)
	if err := dev.Read(0, buf, uint32(r.LBA), uint32(r.Count)); err != nil {
		return err
	}

	out := os.Stdout
	if r.Out != "" {
		f, err := os.Create(r.Out)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if _, err := out.Write(buf); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
