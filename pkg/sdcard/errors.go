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

// Error is the closed set of failure modes the SD/SPI engine can report.
// It implements the standard error interface so callers that only care
// about success/failure can use it directly, while pkg/blockdev and
// pkg/control can inspect the code for diagnostics.
type Error int

const (
	// ErrNone indicates success. Engine methods never return this as an
	// error value (they return nil), but it's the zero value of Error and
	// is what LastError() reports before anything has failed.
	ErrNone Error = iota
	ErrNoCard
	ErrTimeout
	ErrCmd
	ErrCrcCmd
	ErrCrcData
	ErrOutOfRange
	ErrCardController
	ErrEccFail
	ErrGeneral
	ErrWriteReject
	ErrDataToken
)

func (e Error) Error() string {
	switch e {
	case ErrNone:
		return "no error"
	case ErrNoCard:
		return "no card present"
	case ErrTimeout:
		return "operation timed out"
	case ErrCmd:
		return "command error"
	case ErrCrcCmd:
		return "command CRC error"
	case ErrCrcData:
		return "data CRC error"
	case ErrOutOfRange:
		return "address out of range"
	case ErrCardController:
		return "card controller error"
	case ErrEccFail:
		return "card ECC failure"
	case ErrGeneral:
		return "general card read error"
	case ErrWriteReject:
		return "write rejected by card"
	case ErrDataToken:
		return "unexpected data token"
	default:
		return "unknown SD error"
	}
}

// transient reports whether e is worth a bounded retry on a single-block
// read: CRC and framing errors and timeouts can clear themselves on a
// clean re-issue; everything else is surfaced immediately.
func (e Error) transient() bool {
	switch e {
	case ErrCrcData, ErrDataToken, ErrTimeout:
		return true
	default:
		return false
	}
}

// r1ToError maps the error bits of an R1 response to a specific Error.
func r1ToError(r byte) Error {
	switch {
	case r&r1CRCError != 0:
		return ErrCrcCmd
	case r&(r1ParamError|r1AddrError) != 0:
		return ErrOutOfRange
	default:
		return ErrCmd
	}
}

// errorTokenToError maps a read-error data token's sub-bits to a specific
// Error, most-specific bit first.
func errorTokenToError(tok byte) Error {
	switch {
	case tok&errTokenOOR != 0:
		return ErrOutOfRange
	case tok&errTokenECCFail != 0:
		return ErrCrcData
	case tok&errTokenCCErr != 0:
		return ErrCardController
	case tok&errTokenGeneral != 0:
		return ErrGeneral
	default:
		return ErrDataToken
	}
}
