package proc

import (
	"golang.org/x/arch/x86/x86asm"
)

// AsmInstruction is one decoded instruction in the inferior's text.
type AsmInstruction struct {
	Addr  VirtAddr
	Bytes []byte
	Text  string
}

// maxInstructionLength is the longest legal x86-64 instruction. Reading
// n*15 bytes therefore always covers n instructions, so long as that much
// text remains mapped.
const maxInstructionLength = 15

// Disassemble decodes n instructions starting at addr. The bytes are read
// through ReadMemoryWithoutTraps so the decoder sees the original
// instruction stream, not the INT3 patches of enabled breakpoints.
func (p *Process) Disassemble(addr VirtAddr, n int) ([]AsmInstruction, error) {
	code, err := p.ReadMemoryWithoutTraps(addr, n*maxInstructionLength)
	if err != nil {
		return nil, err
	}

	out := make([]AsmInstruction, 0, n)
	pc := addr
	for offset := 0; len(out) < n && offset < len(code); {
		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			break
		}
		out = append(out, AsmInstruction{
			Addr:  pc,
			Bytes: code[offset : offset+inst.Len],
			Text:  x86asm.GNUSyntax(inst, pc.Addr(), nil),
		})
		offset += inst.Len
		pc = pc.Add(int64(inst.Len))
	}
	return out, nil
}
