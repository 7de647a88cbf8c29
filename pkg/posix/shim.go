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

// Package posix carries the contract a POSIX-like file descriptor shim
// needs from this module: a bounded descriptor table with console
// reservations, and an errno-style mapping from sdcard/blockdev errors.
// Actual read/write forwarding lives in the filesystem layer, out of scope
// here.
package posix

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tinyfs/picosd/pkg/sdcard"
)

// Console descriptors are reserved the way a Unix process reserves 0/1/2
// before any file is opened.
const (
	FdStdin  = 0
	FdStdout = 1
	FdStderr = 2
)

// descriptorTag marks an allocated descriptor as distinct from a console
// one, so a caller can tell which table an fd belongs to at a glance.
const descriptorTag = 0x80

// MaxOpenFiles is the fixed capacity of the shim's descriptor table; it
// never grows beyond this.
const MaxOpenFiles = 16

// Table is a bounded, fixed-capacity file descriptor allocator. It knows
// nothing about file contents; it only hands out and reclaims descriptor
// numbers.
type Table struct {
	slots [MaxOpenFiles]bool
}

// NewTable returns an empty descriptor table.
func NewTable() *Table {
	return &Table{}
}

// Alloc reserves the lowest free slot and returns its descriptor number
// (tagged with the high bit), or an error if the table is full.
func (t *Table) Alloc() (int, error) {
	for i := range t.slots {
		if !t.slots[i] {
			t.slots[i] = true
			fd := i | descriptorTag
			log.WithField("fd", fd).Trace("posix: descriptor allocated")
			return fd, nil
		}
	}
	return -1, fmt.Errorf("posix: descriptor table full (max %d)", MaxOpenFiles)
}

// Free releases a descriptor previously returned by Alloc. Freeing an
// already-free or console descriptor is a no-op logged at Warn rather than
// an error, tolerating a redundant close the way a resource cleanup path
// often needs to.
func (t *Table) Free(fd int) {
	if !IsFileDescriptor(fd) {
		log.WithField("fd", fd).Warn("posix: attempted to free a console descriptor")
		return
	}
	i := fd &^ descriptorTag
	if i < 0 || i >= MaxOpenFiles || !t.slots[i] {
		log.WithField("fd", fd).Warn("posix: freeing an already-free descriptor")
		return
	}
	t.slots[i] = false
}

// IsConsole reports whether fd is one of the three reserved console
// descriptors.
func IsConsole(fd int) bool {
	return fd == FdStdin || fd == FdStdout || fd == FdStderr
}

// IsFileDescriptor reports whether fd carries the high tag bit this
// table's Alloc sets, as opposed to a console descriptor.
func IsFileDescriptor(fd int) bool {
	return fd&descriptorTag != 0 && fd >= 0
}

// Errno-style codes a shim's syscall layer can hand back directly. Values
// are the Linux errno numbers; only the SD/FAT-relevant subset is defined.
const (
	ENONE  = 0
	ENOENT = 2
	EIO    = 5
	EBADF  = 9
	EBUSY  = 16
	ENODEV = 19
	EINVAL = 22
	EMFILE = 24
	ENOSPC = 28
)

// Errno translates an sdcard.Error into the errno-style code a POSIX shim
// would return from a failed syscall.
func Errno(err error) int {
	if err == nil {
		return ENONE
	}
	sdErr, ok := err.(sdcard.Error)
	if !ok {
		return EIO
	}
	switch sdErr {
	case sdcard.ErrNone:
		return ENONE
	case sdcard.ErrNoCard:
		return ENODEV
	case sdcard.ErrTimeout, sdcard.ErrCardController:
		return EBUSY
	case sdcard.ErrOutOfRange:
		return ENOSPC
	case sdcard.ErrCmd, sdcard.ErrCrcCmd, sdcard.ErrCrcData, sdcard.ErrDataToken:
		return EIO
	case sdcard.ErrEccFail, sdcard.ErrWriteReject:
		return EIO
	default:
		return EIO
	}
}
