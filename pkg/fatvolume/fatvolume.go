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

// Package fatvolume holds the contract collaborator pkg/mount drives to
// mount and unmount a filesystem. The filesystem implementation itself is
// out of scope; this package only carries the seam and a no-op stand-in for
// tests and for callers that don't need a real FAT library wired in yet.
package fatvolume

import "github.com/tinyfs/picosd/pkg/mount"

// Volume is re-exported from pkg/mount so callers that only need the
// interface don't have to import mount for it.
type Volume = mount.Volume

// NopVolume implements Volume and does nothing. Useful for exercising
// pkg/mount and pkg/run without a real FAT library on hand.
type NopVolume struct{}

func (NopVolume) Mount() error   { return nil }
func (NopVolume) Unmount() error { return nil }
