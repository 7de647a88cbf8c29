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

// Package mount reconciles card presence against mount state, the way
// disk_status/f_mount work together on a polling timer in a bare-metal FAT
// stack. It owns none of the filesystem logic, only the decision of when to
// call Mount/Unmount on a Volume.
package mount

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tinyfs/picosd/pkg/blockdev"
)

// Volume is the FAT library's side of the mount/unmount contract. A real
// implementation is out of scope here; pkg/fatvolume re-exports this
// interface alongside a no-op stand-in.
type Volume interface {
	Mount() error
	Unmount() error
}

// Manager reconciles blockdev.Device card presence against Volume mount
// state, initializing the device and mounting or unmounting the volume as
// the card is inserted or removed.
type Manager struct {
	dev  *blockdev.Device
	vol  Volume
	tick time.Duration

	mu      sync.Mutex
	mounted bool
}

// NewManager returns a Manager that reconciles dev against vol every time
// Poll runs. tick is the interval Run uses between polls; it has no effect
// on direct Poll/Ready calls.
func NewManager(dev *blockdev.Device, vol Volume, tick time.Duration) *Manager {
	return &Manager{dev: dev, vol: vol, tick: tick}
}

// Poll runs one reconciliation pass: if the card is present but not
// mounted, it initializes the drive and mounts the volume; if the card is
// gone but still mounted, it unmounts. Mirrors sdfs_is_ready's two-branch
// shape.
func (m *Manager) Poll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.dev.Status(0)
	present := status != blockdev.ErrNoDisk && status != blockdev.ErrParam

	if present && !m.mounted {
		if err := m.dev.Init(0); err != nil {
			log.Debugf("mount: card present but init failed: %v", err)
			return
		}
		if err := m.vol.Mount(); err != nil {
			log.Errorf("mount: mount failed: %v", err)
			return
		}
		m.mounted = true
		log.Info("mount: card mounted")

	} else if !present && m.mounted {
		if err := m.vol.Unmount(); err != nil {
			log.Errorf("mount: unmount failed: %v", err)
		}
		m.mounted = false
		log.Info("mount: card removed, unmounted")
	}
}

// Ready runs a Poll and reports the resulting mount state, the way
// sdfs_is_ready both reconciles and answers in one call.
func (m *Manager) Ready() bool {
	m.Poll()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Run calls Poll on Manager's tick interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll()
		}
	}
}
