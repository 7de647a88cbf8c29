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

package sdcard

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tinyfs/picosd/pkg/bus"
)

// initState names one step of the SPI-mode bring-up sequence. Init walks
// them in order; any failure aborts with the state name in the log so a
// bad power rail or wiring fault is easy to place.
type initState int

const (
	stateUninit initState = iota
	stateBusPrimed
	stateReset
	stateVersionProbe
	stateCrcEnable
	stateOcrProbe
	statePowerUp
	stateCapacityClassify
	stateSetBlockLen
	stateFastBaud
)

func (s initState) String() string {
	switch s {
	case stateUninit:
		return "uninit"
	case stateBusPrimed:
		return "bus-primed"
	case stateReset:
		return "reset"
	case stateVersionProbe:
		return "version-probe"
	case stateCrcEnable:
		return "crc-enable"
	case stateOcrProbe:
		return "ocr-probe"
	case statePowerUp:
		return "power-up"
	case stateCapacityClassify:
		return "capacity-classify"
	case stateSetBlockLen:
		return "set-block-len"
	case stateFastBaud:
		return "fast-baud"
	default:
		return "unknown"
	}
}

// Init runs the full SPI-mode bring-up sequence: card presence, dummy
// clocks, CMD0 reset, CMD8 version probe, optional CRC enable, OCR
// voltage check, ACMD41 power-up polling, capacity classification via a
// second OCR read, SET_BLOCKLEN(512), and finally the switch to the fast
// operating baud rate. CS is asserted once bus priming completes and held
// for the engine's lifetime.
func (e *Engine) Init() error {
	state := stateUninit
	var isV2 bool

	for state != stateFastBaud {
		var err error
		state, isV2, err = e.step(state, isV2)
		if err != nil {
			log.WithField("state", state).WithError(err).Debug("sdcard init failed")
			return e.fail(err)
		}
	}

	if err := e.bus.SetBaud(fastBaud); err != nil {
		return e.fail(err)
	}

	e.lastError = ErrNone
	return nil
}

func (e *Engine) step(state initState, isV2 bool) (initState, bool, error) {
	switch state {
	case stateUninit:
		if !e.bus.CardDetect() {
			return state, isV2, ErrNoCard
		}
		if err := e.bus.Configure(initBaud); err != nil {
			return state, isV2, err
		}
		time.Sleep(powerUpDelay)
		return stateBusPrimed, isV2, nil

	case stateBusPrimed:
		e.bus.DeassertCS()
		if err := bus.WriteFiller(e.bus, 10); err != nil { // >=74 clocks
			return state, isV2, err
		}
		e.bus.AssertCS()
		return stateReset, isV2, nil

	case stateReset:
		var r byte
		var err error
		for attempt := 0; attempt < cmd0Retries; attempt++ {
			r, err = e.sendCommand(cmdGoIdleState, 0)
			if err != nil {
				return state, isV2, err
			}
			if err := bus.WriteFiller(e.bus, 1); err != nil {
				return state, isV2, err
			}
			if r == r1Idle {
				break
			}
			time.Sleep(cmd0RetryDelay)
		}
		if r != r1Idle {
			return state, isV2, ErrTimeout
		}
		return stateVersionProbe, isV2, nil

	case stateVersionProbe:
		r, err := e.sendCommand(cmdSendIfCond, 0x1AA)
		if err != nil {
			return state, isV2, err
		}
		if r == r1Idle {
			r7, err := e.readR3R7()
			if err != nil {
				return state, isV2, err
			}
			if err := bus.WriteFiller(e.bus, 1); err != nil {
				return state, isV2, err
			}
			isV2 = r7[2]&0x0F == 0x01 && r7[3] == 0xAA
		} else {
			if err := bus.WriteFiller(e.bus, 1); err != nil {
				return state, isV2, err
			}
		}
		return stateCrcEnable, isV2, nil

	case stateCrcEnable:
		e.crcEnabled = false
		if e.wantCRC {
			// CMD59 is optional; some cards reject it. Non-fatal either way.
			if _, err := e.sendCommand(cmdCRCOnOff, 1); err != nil {
				return state, isV2, err
			}
			if err := bus.WriteFiller(e.bus, 1); err != nil {
				return state, isV2, err
			}
			e.crcEnabled = true
		}
		return stateOcrProbe, isV2, nil

	case stateOcrProbe:
		r, err := e.sendCommand(cmdReadOCR, 0)
		if err != nil {
			return state, isV2, err
		}
		ocr, err := e.readR3R7()
		if err != nil {
			return state, isV2, err
		}
		if err := bus.WriteFiller(e.bus, 1); err != nil {
			return state, isV2, err
		}
		if r&r1ErrorMask != 0 {
			return state, isV2, r1ToError(r)
		}
		if ocr[1]&0x30 == 0 {
			return state, isV2, ErrCmd
		}
		return statePowerUp, isV2, nil

	case statePowerUp:
		deadline := time.Now().Add(initTimeout)
		var r byte
		for {
			var err error
			r, err = e.sendCommand(cmdAppCmd, 0)
			if err != nil {
				return state, isV2, err
			}
			if err := bus.WriteFiller(e.bus, 1); err != nil {
				return state, isV2, err
			}
			if r&r1ErrorMask != 0 {
				return state, isV2, r1ToError(r)
			}

			var hcs uint32
			if isV2 {
				hcs = 1 << 30
			}
			r, err = e.sendCommand(acmdSendOpCond, hcs)
			if err != nil {
				return state, isV2, err
			}
			if err := bus.WriteFiller(e.bus, 1); err != nil {
				return state, isV2, err
			}
			if r == 0 {
				break
			}
			if time.Now().After(deadline) {
				return state, isV2, ErrTimeout
			}
			time.Sleep(initPollPeriod)
		}
		return stateCapacityClassify, isV2, nil

	case stateCapacityClassify:
		r, err := e.sendCommand(cmdReadOCR, 0)
		if err != nil {
			return state, isV2, err
		}
		ocr, err := e.readR3R7()
		if err != nil {
			return state, isV2, err
		}
		if err := bus.WriteFiller(e.bus, 1); err != nil {
			return state, isV2, err
		}
		if r&r1ErrorMask != 0 {
			return state, isV2, r1ToError(r)
		}
		if ocr[0]&0x40 != 0 {
			e.identity.Addressing = BlockAddressed
			e.identity.Kind = KindSDHCXC
		} else {
			e.identity.Addressing = ByteAddressed
			if isV2 {
				e.identity.Kind = KindSDSCv2
			} else {
				e.identity.Kind = KindSDSCv1
			}
		}
		return stateSetBlockLen, isV2, nil

	case stateSetBlockLen:
		r, err := e.sendCommand(cmdSetBlockLen, SectorSize)
		if err != nil {
			return state, isV2, err
		}
		if err := bus.WriteFiller(e.bus, 1); err != nil {
			return state, isV2, err
		}
		if r != 0 {
			return state, isV2, r1ToError(r)
		}
		if err := e.readCapacity(); err != nil {
			return state, isV2, err
		}
		return stateFastBaud, isV2, nil
	}
	return state, isV2, nil
}

// readCapacity issues SEND_CSD (CMD9) and stores the decoded sector
// count. Called once, at the end of Init, once addressing mode is known.
func (e *Engine) readCapacity() error {
	r, err := e.sendCommand(cmdSendCSD, 0)
	if err != nil {
		return err
	}
	if r&r1ErrorMask != 0 {
		if err := bus.WriteFiller(e.bus, 1); err != nil {
			return err
		}
		return r1ToError(r)
	}

	if err := e.waitForDataToken(readTimeout); err != nil {
		return err
	}

	var csd [16]byte
	fill := make([]byte, 16)
	for i := range fill {
		fill[i] = filler
	}
	if err := e.bus.Transfer(fill, csd[:]); err != nil {
		return err
	}

	crcTx := [2]byte{filler, filler}
	var crcRx [2]byte
	if err := e.bus.Transfer(crcTx[:], crcRx[:]); err != nil {
		return err
	}
	if e.crcEnabled {
		got := uint16(crcRx[0])<<8 | uint16(crcRx[1])
		if got != crc16CCITT(csd[:]) {
			return ErrCrcData
		}
	}

	e.identity.SectorCount = csdSectorCount(csd)
	return nil
}
