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

// Package blockdev adapts pkg/sdcard's rich error taxonomy to the narrow
// {Ok, NotInitialized, NoDisk, ParamErr, Err} shape a FAT library expects
// from a block device driver.
package blockdev

import (
	"context"
	"fmt"
	"time"

	"github.com/tinyfs/picosd/pkg/sdcard"
)

// lockTimeout bounds how long a Device method waits for exclusive access to
// the underlying card before giving up, the way the teacher's cartridge
// lookups bound their own lock wait rather than blocking forever.
const lockTimeout = time.Second

// IoctlOp names one of the four control operations FAT issues against a
// block device.
type IoctlOp int

const (
	OpSync IoctlOp = iota
	OpSectorSize
	OpBlockSize
	OpSectorCount
)

// ErrParam is returned for any request against a drive number other than
// zero: this adapter only ever exposes a single card.
var ErrParam = fmt.Errorf("blockdev: invalid drive number")

// ErrNotInitialized is returned by Init when the card fails to come up,
// and by Status, Read and Write before Init has completed successfully.
var ErrNotInitialized = fmt.Errorf("blockdev: drive not initialized")

// ErrNoDisk is returned by Status when no card is present.
var ErrNoDisk = fmt.Errorf("blockdev: no disk present")

// ErrBusy is returned when the underlying card couldn't be locked within
// lockTimeout, meaning another goroutine (the mount ticker, a concurrent
// API call) is mid-transfer.
var ErrBusy = fmt.Errorf("blockdev: card busy")

// Device exposes one sdcard.Engine as a FAT-compatible single-drive block
// device.
type Device struct {
	engine      *sdcard.Engine
	initialized bool
}

// New wraps engine as drive 0.
func New(engine *sdcard.Engine) *Device {
	return &Device{engine: engine}
}

func (d *Device) checkDrive(drive int) error {
	if drive != 0 {
		return ErrParam
	}
	return nil
}

// lock acquires exclusive access to the underlying engine, bounded by
// lockTimeout, so a mount-manager poll and a concurrent API call never
// issue overlapping SD commands over the same bus.
func (d *Device) lock() error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if !d.engine.Lock(ctx) {
		return ErrBusy
	}
	return nil
}

// Init brings the underlying card up via sdcard.Engine.Init. Safe to call
// again after a card is reinserted.
func (d *Device) Init(drive int) error {
	if err := d.checkDrive(drive); err != nil {
		return err
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.engine.Unlock()

	if err := d.engine.Init(); err != nil {
		d.initialized = false
		return ErrNotInitialized
	}
	d.initialized = true
	return nil
}

// Status reports the disk status FAT checks before every operation: nil
// on success, ErrNoDisk if the card isn't present, ErrNotInitialized if
// Init hasn't succeeded yet.
func (d *Device) Status(drive int) error {
	if err := d.checkDrive(drive); err != nil {
		return err
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.engine.Unlock()

	if !d.engine.CardPresent() {
		d.initialized = false
		return ErrNoDisk
	}
	if !d.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Read forwards to Engine.ReadBlocks.
func (d *Device) Read(drive int, buf []byte, lba, n uint32) error {
	if err := d.checkDrive(drive); err != nil {
		return err
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.engine.Unlock()

	if !d.initialized {
		return ErrNotInitialized
	}
	return d.engine.ReadBlocks(lba, n, buf)
}

// Write forwards to Engine.WriteBlocks.
func (d *Device) Write(drive int, buf []byte, lba, n uint32) error {
	if err := d.checkDrive(drive); err != nil {
		return err
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.engine.Unlock()

	if !d.initialized {
		return ErrNotInitialized
	}
	return d.engine.WriteBlocks(lba, n, buf)
}

// Ioctl answers the four control queries FAT issues. SYNC is a no-op
// because every write above already runs to completion synchronously.
func (d *Device) Ioctl(drive int, op IoctlOp, out interface{}) error {
	if err := d.checkDrive(drive); err != nil {
		return err
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.engine.Unlock()

	switch op {
	case OpSync:
		return nil
	case OpSectorSize:
		p, ok := out.(*uint16)
		if !ok {
			return fmt.Errorf("blockdev: ioctl SECTOR_SIZE wants *uint16")
		}
		*p = sdcard.SectorSize
		return nil
	case OpBlockSize:
		p, ok := out.(*uint32)
		if !ok {
			return fmt.Errorf("blockdev: ioctl BLOCK_SIZE wants *uint32")
		}
		*p = 1
		return nil
	case OpSectorCount:
		p, ok := out.(*uint32)
		if !ok {
			return fmt.Errorf("blockdev: ioctl SECTOR_COUNT wants *uint32")
		}
		count, err := d.engine.SectorCount()
		if err != nil {
			return err
		}
		*p = count
		return nil
	default:
		return fmt.Errorf("blockdev: unknown ioctl op %d", op)
	}
}
