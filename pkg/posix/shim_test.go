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

package posix

import (
	"testing"

	"github.com/tinyfs/picosd/pkg/sdcard"
)

func TestConsoleDescriptorsAreReserved(t *testing.T) {
	for _, fd := range []int{FdStdin, FdStdout, FdStderr} {
		if !IsConsole(fd) {
			t.Errorf("IsConsole(%d) = false, want true", fd)
		}
		if IsFileDescriptor(fd) {
			t.Errorf("IsFileDescriptor(%d) = true, want false", fd)
		}
	}
}

func TestAllocTagsWithHighBit(t *testing.T) {
	tab := NewTable()
	fd, err := tab.Alloc()
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if !IsFileDescriptor(fd) {
		t.Errorf("Alloc() = %d, want high-bit tagged", fd)
	}
	if IsConsole(fd) {
		t.Errorf("allocated fd %d collides with a console descriptor", fd)
	}
}

func TestAllocExhaustsAtCapacity(t *testing.T) {
	tab := NewTable()
	for i := 0; i < MaxOpenFiles; i++ {
		if _, err := tab.Alloc(); err != nil {
			t.Fatalf("Alloc() #%d error = %v", i, err)
		}
	}
	if _, err := tab.Alloc(); err == nil {
		t.Errorf("Alloc() at capacity = nil error, want an error")
	}
}

func TestFreeReclaimsSlot(t *testing.T) {
	tab := NewTable()
	fd, _ := tab.Alloc()
	tab.Free(fd)

	for i := 0; i < MaxOpenFiles; i++ {
		if _, err := tab.Alloc(); err != nil {
			t.Fatalf("Alloc() after Free failed at #%d: %v", i, err)
		}
	}
}

func TestErrnoMapsSdcardErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, ENONE},
		{sdcard.ErrNoCard, ENODEV},
		{sdcard.ErrTimeout, EBUSY},
		{sdcard.ErrOutOfRange, ENOSPC},
		{sdcard.ErrCrcData, EIO},
	}
	for _, c := range cases {
		if got := Errno(c.err); got != c.want {
			t.Errorf("Errno(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestErrnoOnUnknownErrorIsEIO(t *testing.T) {
	if got := Errno(errBoom); got != EIO {
		t.Errorf("Errno(unknown) = %d, want EIO", got)
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
