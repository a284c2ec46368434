// Package amd64util programs the x86 debug registers described in the
// Intel 64 and IA-32 Architectures Software Developer's Manual, Vol. 3B,
// section 17.2.
package amd64util

import (
	"errors"
	"fmt"
)

// Condition selects when a debug-register slot traps. The values are the
// 2-bit R/W fields of DR7.
type Condition uint8

const (
	CondExecute   Condition = 0b00
	CondWrite     Condition = 0b01
	CondReadWrite Condition = 0b11
)

// DebugRegisters manipulates a snapshot of DR0-DR3, DR6 and DR7. Dirty is
// set when the snapshot diverges from the target and must be written back.
type DebugRegisters struct {
	pAddrs     [4]*uint64
	pDR6, pDR7 *uint64
	Dirty      bool
}

func NewDebugRegisters(pDR0, pDR1, pDR2, pDR3, pDR6, pDR7 *uint64) *DebugRegisters {
	return &DebugRegisters{
		pAddrs: [4]*uint64{pDR0, pDR1, pDR2, pDR3},
		pDR6:   pDR6,
		pDR7:   pDR7,
	}
}

func lenrwBitsOffset(idx uint8) uint8 {
	return 16 + idx*4
}

func enableBitOffset(idx uint8) uint8 {
	return idx * 2
}

func (drs *DebugRegisters) enabled(idx uint8) bool {
	return *drs.pDR7&(1<<enableBitOffset(idx)) != 0
}

// FreeSlot returns the lowest slot whose local-enable bit is clear.
func (drs *DebugRegisters) FreeSlot() (uint8, error) {
	for idx := uint8(0); idx < 4; idx++ {
		if !drs.enabled(idx) {
			return idx, nil
		}
	}
	return 0, errors.New("no free debug registers")
}

// SetStoppoint programs slot idx to trap at addr with the given condition
// and watched size. Execute stoppoints always use length 1 regardless of
// sz.
func (drs *DebugRegisters) SetStoppoint(idx uint8, addr uint64, cond Condition, sz uint) error {
	if int(idx) >= len(drs.pAddrs) {
		return fmt.Errorf("debug register %d out of range", idx)
	}

	var lenBits uint64
	switch sz {
	case 1:
		lenBits = 0b00
	case 2:
		lenBits = 0b01
	case 4:
		lenBits = 0b11
	case 8:
		lenBits = 0b10
	default:
		return fmt.Errorf("hardware stoppoint of size %d not supported", sz)
	}
	if cond == CondExecute {
		lenBits = 0b00
	}

	*drs.pAddrs[idx] = addr
	*drs.pDR7 &^= 0xf << lenrwBitsOffset(idx) // clear old condition and length
	*drs.pDR7 |= (uint64(cond) | lenBits<<2) << lenrwBitsOffset(idx)
	*drs.pDR7 |= 1 << enableBitOffset(idx) // local enable
	drs.Dirty = true
	return nil
}

// ClearStoppoint disables slot idx. Clearing a disabled slot does nothing.
func (drs *DebugRegisters) ClearStoppoint(idx uint8) {
	if !drs.enabled(idx) {
		return
	}
	*drs.pAddrs[idx] = 0
	*drs.pDR7 &^= 1 << enableBitOffset(idx)
	*drs.pDR7 &^= 0xf << lenrwBitsOffset(idx)
	drs.Dirty = true
}

// HitIndex reports which enabled slot caused the current trap, according
// to the condition bits of DR6.
func (drs *DebugRegisters) HitIndex() (ok bool, idx uint8) {
	for idx := uint8(0); idx < 4; idx++ {
		if !drs.enabled(idx) {
			continue
		}
		if *drs.pDR6&(1<<idx) != 0 {
			return true, idx
		}
	}
	return false, 0
}

// DR6Volatile covers the DR6 bits a debug exception may set: the four
// condition bits and the single-step bit.
const DR6Volatile = uint64(0xf | 1<<14)

// SingleStep reports whether DR6 records a single-step trap (bit 14).
func SingleStep(dr6 uint64) bool {
	return dr6&(1<<14) != 0
}

// ConditionHit reports whether DR6 records any debug-register hit.
func ConditionHit(dr6 uint64) bool {
	return dr6&0xf != 0
}
