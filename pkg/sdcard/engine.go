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

// Package sdcard implements the SD SPI-mode protocol: card init, block
// read/write, and CSD-derived capacity, driven over a pkg/bus.Bus.
package sdcard

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/tinyfs/picosd/pkg/bus"
)

// Identity holds what Init learns about the attached card.
type Identity struct {
	Kind        CardKind
	Addressing  Addressing
	SectorCount uint32
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithCRC enables CRC7/CRC16 checking (CMD59) during Init. Off by default,
// matching the SPI-mode power-on default every SD card starts in.
func WithCRC(enabled bool) Option {
	return func(e *Engine) { e.wantCRC = enabled }
}

// Engine drives one SD card in SPI mode over a Bus. It carries a
// channel-based lock (Lock/Unlock) that callers take around their calls so
// a single card can be shared safely across goroutines; the other methods
// do not take it themselves.
type Engine struct {
	bus     bus.Bus
	wantCRC bool

	lock chan bool

	crcEnabled bool
	identity   Identity
	lastError  Error
}

// New returns an Engine bound to bus b. Init must be called before any
// other method.
func New(b bus.Bus, opts ...Option) *Engine {
	e := &Engine{
		bus:  b,
		lock: make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lock acquires exclusive access to the card, blocking until ctx is done
// or the lock is free. Returns false if ctx expired first.
func (e *Engine) Lock(ctx context.Context) bool {
	select {
	case e.lock <- true:
		return true
	case <-ctx.Done():
		log.Debug("sdcard: lock wait cancelled")
		return false
	}
}

// Unlock releases a lock acquired with Lock. Safe to call on an unlocked
// Engine.
func (e *Engine) Unlock() {
	select {
	case <-e.lock:
	default:
		log.Debug("sdcard: unlock on already-unlocked engine")
	}
}

// CardPresent samples the bus's card-detect line directly, independent of
// whether Init has ever succeeded.
func (e *Engine) CardPresent() bool {
	return e.bus.CardDetect()
}

// SetWantCRC changes whether the next Init negotiates CRC checking via
// CMD59. It has no effect on a card that's already initialized: CRC mode is
// only ever negotiated during the init handshake, so a change here takes
// hold on the next reinsertion.
func (e *Engine) SetWantCRC(enabled bool) {
	e.wantCRC = enabled
}

// WantCRC reports the CRC mode the next Init will request.
func (e *Engine) WantCRC() bool {
	return e.wantCRC
}

// CRCEnabled reports whether the currently initialized card negotiated CRC
// checking.
func (e *Engine) CRCEnabled() bool {
	return e.crcEnabled
}

// SetBaud changes the bus's SPI clock rate directly, bypassing the
// init-time fast-baud switch. Exposed for diagnostics; real callers almost
// always want the rate Init already chose.
func (e *Engine) SetBaud(baud int) error {
	return e.bus.SetBaud(baud)
}

// IsSDHC reports whether the card uses block addressing (SDHC/SDXC) as
// opposed to byte addressing (SDSC). Only meaningful after a successful
// Init.
func (e *Engine) IsSDHC() bool {
	return e.identity.Addressing == BlockAddressed
}

// SectorCount returns the card's capacity in 512-byte sectors, as parsed
// from the CSD register during Init.
func (e *Engine) SectorCount() (uint32, error) {
	if e.identity.SectorCount == 0 {
		return 0, e.fail(ErrNoCard)
	}
	return e.identity.SectorCount, nil
}

// LastError returns the most recent failure this Engine reported, or
// ErrNone if every call so far has succeeded.
func (e *Engine) LastError() Error {
	return e.lastError
}

// fail records err as the engine's LastError and returns it as an error.
// If err isn't already a known Error, it's recorded as ErrGeneral so
// LastError always yields something a caller can act on.
func (e *Engine) fail(err error) error {
	if err == nil {
		e.lastError = ErrNone
		return nil
	}
	if sdErr, ok := err.(Error); ok {
		e.lastError = sdErr
		return sdErr
	}
	e.lastError = ErrGeneral
	return err
}

// translateAddress converts a logical sector index into the argument
// sendCommand should carry: the raw sector index for block-addressed
// cards, or the equivalent byte offset for byte-addressed ones.
func (e *Engine) translateAddress(sector uint32) uint32 {
	if e.identity.Addressing == BlockAddressed {
		return sector
	}
	return sector * SectorSize
}
