package proc

import (
	"encoding/binary"
	"math"
)

// userAreaSize covers struct user up to and including u_debugreg.
const userAreaSize = offDebugregs + 8*8

// Registers is a typed view over a cached copy of the inferior's user
// area. The cache is refreshed by the owning process on every stop and is
// authoritative between a stop and the next resume. Writes update the
// cache and immediately write through to the kernel.
type Registers struct {
	data [userAreaSize]byte
	proc *Process
}

func newRegisters(p *Process) *Registers {
	return &Registers{proc: p}
}

// Read reinterprets the register's bytes in the cache according to its
// declared format.
func (r *Registers) Read(info RegInfo) Value {
	bytes := r.data[info.Offset:]
	switch info.Format {
	case FormatUint:
		switch info.Size {
		case 1:
			return bytes[0]
		case 2:
			return binary.LittleEndian.Uint16(bytes)
		case 4:
			return binary.LittleEndian.Uint32(bytes)
		case 8:
			return binary.LittleEndian.Uint64(bytes)
		}
	case FormatDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(bytes))
	case FormatLongDouble:
		return float80(bytes)
	case FormatVector:
		if info.Size == 8 {
			var v Byte64
			copy(v[:], bytes)
			return v
		}
	}
	var v Byte128
	copy(v[:], bytes)
	return v
}

// ReadByID reads the register identified by id.
func (r *Registers) ReadByID(id RegID) (Value, error) {
	info, err := RegInfoByID(id)
	if err != nil {
		return nil, err
	}
	return r.Read(info), nil
}

// Write stores v into the register, widening narrower values, and writes
// the change through to the kernel. Values wider than the register are
// rejected.
func (r *Registers) Write(info RegInfo, v Value) error {
	size := valueSize(v)
	if size == 0 || size > info.Size {
		return errorf("mismatched register and value sizes")
	}

	wide := widen(info, v)
	copy(r.data[info.Offset:info.Offset+info.Size], wide[:])

	if info.Kind == KindFPR {
		return r.proc.WriteFPRs(r.fprData())
	}

	// POKEUSER writes whole words at word-aligned offsets. Source the word
	// from the cache so the neighbouring bytes survive (this is what makes
	// ah/bh/ch/dh writes work).
	aligned := info.Offset &^ 7
	word := binary.LittleEndian.Uint64(r.data[aligned:])
	return r.proc.WriteUserStruct(uintptr(aligned), word)
}

// WriteByID writes v into the register identified by id.
func (r *Registers) WriteByID(id RegID, v Value) error {
	info, err := RegInfoByID(id)
	if err != nil {
		return err
	}
	return r.Write(info, v)
}

func (r *Registers) pc() VirtAddr {
	return VirtAddr(binary.LittleEndian.Uint64(r.data[offRip:]))
}

func (r *Registers) gprData() []byte { return r.data[0:offFpregs] }

func (r *Registers) fprData() []byte { return r.data[offFpregs : offFpregs+512] }

func (r *Registers) setDebugReg(i int, v uint64) {
	binary.LittleEndian.PutUint64(r.data[offDebugregs+8*i:], v)
}

func (r *Registers) debugReg(i int) uint64 {
	return binary.LittleEndian.Uint64(r.data[offDebugregs+8*i:])
}
