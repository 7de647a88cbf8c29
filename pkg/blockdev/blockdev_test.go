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

package blockdev

import (
	"bytes"
	"testing"

	"github.com/tinyfs/picosd/pkg/bus"
	"github.com/tinyfs/picosd/pkg/sdcard"
)

func newTestDevice(t *testing.T) (*Device, *bus.FakeBus) {
	t.Helper()
	fb := bus.NewFakeBus(4096, true)
	dev := New(sdcard.New(fb))
	if err := dev.Init(0); err != nil {
		t.Fatalf("Init(0) = %v, want nil", err)
	}
	return dev, fb
}

func TestInitRejectsNonZeroDrive(t *testing.T) {
	dev, _ := newTestDevice(t)
	if err := dev.Init(1); err != ErrParam {
		t.Errorf("Init(1) = %v, want ErrParam", err)
	}
}

func TestStatusReflectsCardPresence(t *testing.T) {
	dev, fb := newTestDevice(t)
	if err := dev.Status(0); err != nil {
		t.Fatalf("Status(0) = %v, want nil", err)
	}
	fb.SetPresent(false)
	if err := dev.Status(0); err != ErrNoDisk {
		t.Errorf("Status(0) after removal = %v, want ErrNoDisk", err)
	}
}

func TestReadWriteBeforeInitFails(t *testing.T) {
	fb := bus.NewFakeBus(4096, true)
	dev := New(sdcard.New(fb))
	buf := make([]byte, sdcard.SectorSize)
	if err := dev.Read(0, buf, 0, 1); err != ErrNotInitialized {
		t.Errorf("Read before Init = %v, want ErrNotInitialized", err)
	}
	if err := dev.Write(0, buf, 0, 1); err != ErrNotInitialized {
		t.Errorf("Write before Init = %v, want ErrNotInitialized", err)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	dev, _ := newTestDevice(t)

	want := bytes.Repeat([]byte{0x5A}, sdcard.SectorSize)
	if err := dev.Write(0, want, 20, 1); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got := make([]byte, sdcard.SectorSize)
	if err := dev.Read(0, got, 20, 1); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("read back mismatched data")
	}
}

func TestIoctlSectorSize(t *testing.T) {
	dev, _ := newTestDevice(t)
	var sz uint16
	if err := dev.Ioctl(0, OpSectorSize, &sz); err != nil {
		t.Fatalf("Ioctl(SECTOR_SIZE) error = %v", err)
	}
	if sz != sdcard.SectorSize {
		t.Errorf("Ioctl(SECTOR_SIZE) = %d, want %d", sz, sdcard.SectorSize)
	}
}

func TestIoctlSectorCount(t *testing.T) {
	dev, _ := newTestDevice(t)
	var count uint32
	if err := dev.Ioctl(0, OpSectorCount, &count); err != nil {
		t.Fatalf("Ioctl(SECTOR_COUNT) error = %v", err)
	}
	if count == 0 {
		t.Errorf("Ioctl(SECTOR_COUNT) = 0, want a positive count")
	}
}

func TestIoctlRejectsWrongDrive(t *testing.T) {
	dev, _ := newTestDevice(t)
	var sz uint16
	if err := dev.Ioctl(3, OpSectorSize, &sz); err != ErrParam {
		t.Errorf("Ioctl on drive 3 = %v, want ErrParam", err)
	}
}
