package proc

// The register catalog describes every register the kernel exposes through
// the user area: where it lives, how wide it is and how its bytes are
// interpreted. Offsets are byte offsets into struct user from sys/user.h
// and must not be changed; the ptrace PEEKUSER/POKEUSER API addresses the
// user area with exactly these offsets. See arch/x86/kernel/ptrace.c.

// RegID identifies a register or sub-register.
type RegID int

// RegKind classifies a register by the user-area sub-region it lives in.
type RegKind int

const (
	KindGPR RegKind = iota
	KindSubGPR
	KindFPR
	KindDR
)

// RegFormat describes how a register's bytes are interpreted.
type RegFormat int

const (
	FormatUint RegFormat = iota
	FormatDouble
	FormatLongDouble
	FormatVector
)

const (
	RegRax RegID = iota
	RegRdx
	RegRcx
	RegRbx
	RegRsi
	RegRdi
	RegRbp
	RegRsp
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
	RegRip
	RegRflags
	RegCs
	RegFs
	RegGs
	RegSs
	RegDs
	RegEs
	RegOrigRax
	RegFsBase
	RegGsBase

	RegEax
	RegEdx
	RegEcx
	RegEbx
	RegEsi
	RegEdi
	RegEbp
	RegEsp
	RegR8d
	RegR9d
	RegR10d
	RegR11d
	RegR12d
	RegR13d
	RegR14d
	RegR15d

	RegAx
	RegDx
	RegCx
	RegBx
	RegSi
	RegDi
	RegBp
	RegSp
	RegR8w
	RegR9w
	RegR10w
	RegR11w
	RegR12w
	RegR13w
	RegR14w
	RegR15w

	RegAh
	RegDh
	RegCh
	RegBh

	RegAl
	RegDl
	RegCl
	RegBl
	RegSil
	RegDil
	RegBpl
	RegSpl
	RegR8b
	RegR9b
	RegR10b
	RegR11b
	RegR12b
	RegR13b
	RegR14b
	RegR15b

	RegFcw
	RegFsw
	RegFtw
	RegFop
	RegFrip
	RegFrdp
	RegMxcsr
	RegMxcsrmask

	RegSt0
	RegSt1
	RegSt2
	RegSt3
	RegSt4
	RegSt5
	RegSt6
	RegSt7

	RegMm0
	RegMm1
	RegMm2
	RegMm3
	RegMm4
	RegMm5
	RegMm6
	RegMm7

	RegXmm0
	RegXmm1
	RegXmm2
	RegXmm3
	RegXmm4
	RegXmm5
	RegXmm6
	RegXmm7
	RegXmm8
	RegXmm9
	RegXmm10
	RegXmm11
	RegXmm12
	RegXmm13
	RegXmm14
	RegXmm15

	RegDr0
	RegDr1
	RegDr2
	RegDr3
	RegDr4
	RegDr5
	RegDr6
	RegDr7
)

// RegInfo is the immutable descriptor of one catalog entry.
type RegInfo struct {
	ID      RegID
	Name    string
	DwarfID int
	Size    uint
	Offset  uint
	Kind    RegKind
	Format  RegFormat
}

// struct user field offsets, amd64. The general purpose registers come
// first (user_regs_struct), the 512-byte i387 area sits at 224 and the
// eight debug registers at 848.
const (
	offR15     = 0
	offR14     = 8
	offR13     = 16
	offR12     = 24
	offRbp     = 32
	offRbx     = 40
	offR11     = 48
	offR10     = 56
	offR9      = 64
	offR8      = 72
	offRax     = 80
	offRcx     = 88
	offRdx     = 96
	offRsi     = 104
	offRdi     = 112
	offOrigRax = 120
	offRip     = 128
	offCs      = 136
	offRflags  = 144
	offRsp     = 152
	offSs      = 160
	offFsBase  = 168
	offGsBase  = 176
	offDs      = 184
	offEs      = 192
	offFs      = 200
	offGs      = 208

	offFpregs = 224
	offFcw    = offFpregs + 0
	offFsw    = offFpregs + 2
	offFtw    = offFpregs + 4
	offFop    = offFpregs + 6
	offFrip   = offFpregs + 8
	offFrdp   = offFpregs + 16
	offMxcsr  = offFpregs + 24
	offMxmask = offFpregs + 28
	offSt     = offFpregs + 32  // st0..st7, 16 bytes apart
	offXmm    = offFpregs + 160 // xmm0..xmm15, 16 bytes apart

	offDebugregs = 848 // u_debugreg[0..7], 8 bytes apart
)

func gpr64(id RegID, name string, dwarf int, offset uint) RegInfo {
	return RegInfo{id, name, dwarf, 8, offset, KindGPR, FormatUint}
}

func subGPR(id RegID, name string, size, offset uint) RegInfo {
	return RegInfo{id, name, -1, size, offset, KindSubGPR, FormatUint}
}

func fpr(id RegID, name string, dwarf int, size, offset uint) RegInfo {
	return RegInfo{id, name, dwarf, size, offset, KindFPR, FormatUint}
}

func fpSt(n RegID) RegInfo {
	i := uint(n - RegSt0)
	return RegInfo{n, "st" + digits[i], 33 + int(i), 16, offSt + 16*i, KindFPR, FormatLongDouble}
}

func fpMm(n RegID) RegInfo {
	i := uint(n - RegMm0)
	return RegInfo{n, "mm" + digits[i], 41 + int(i), 8, offSt + 16*i, KindFPR, FormatVector}
}

func fpXmm(n RegID) RegInfo {
	i := uint(n - RegXmm0)
	return RegInfo{n, "xmm" + digits[i], 17 + int(i), 16, offXmm + 16*i, KindFPR, FormatVector}
}

func dr(n RegID) RegInfo {
	i := uint(n - RegDr0)
	return RegInfo{n, "dr" + digits[i], -1, 8, offDebugregs + 8*i, KindDR, FormatUint}
}

var digits = [...]string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15"}

var regInfos = []RegInfo{
	gpr64(RegRax, "rax", 0, offRax),
	gpr64(RegRdx, "rdx", 1, offRdx),
	gpr64(RegRcx, "rcx", 2, offRcx),
	gpr64(RegRbx, "rbx", 3, offRbx),
	gpr64(RegRsi, "rsi", 4, offRsi),
	gpr64(RegRdi, "rdi", 5, offRdi),
	gpr64(RegRbp, "rbp", 6, offRbp),
	gpr64(RegRsp, "rsp", 7, offRsp),
	gpr64(RegR8, "r8", 8, offR8),
	gpr64(RegR9, "r9", 9, offR9),
	gpr64(RegR10, "r10", 10, offR10),
	gpr64(RegR11, "r11", 11, offR11),
	gpr64(RegR12, "r12", 12, offR12),
	gpr64(RegR13, "r13", 13, offR13),
	gpr64(RegR14, "r14", 14, offR14),
	gpr64(RegR15, "r15", 15, offR15),
	gpr64(RegRip, "rip", 16, offRip),
	gpr64(RegRflags, "rflags", 49, offRflags),
	gpr64(RegCs, "cs", 51, offCs),
	gpr64(RegFs, "fs", 54, offFs),
	gpr64(RegGs, "gs", 55, offGs),
	gpr64(RegSs, "ss", 52, offSs),
	gpr64(RegDs, "ds", 53, offDs),
	gpr64(RegEs, "es", 50, offEs),
	gpr64(RegOrigRax, "orig_rax", -1, offOrigRax),
	gpr64(RegFsBase, "fs_base", 58, offFsBase),
	gpr64(RegGsBase, "gs_base", 59, offGsBase),

	subGPR(RegEax, "eax", 4, offRax),
	subGPR(RegEdx, "edx", 4, offRdx),
	subGPR(RegEcx, "ecx", 4, offRcx),
	subGPR(RegEbx, "ebx", 4, offRbx),
	subGPR(RegEsi, "esi", 4, offRsi),
	subGPR(RegEdi, "edi", 4, offRdi),
	subGPR(RegEbp, "ebp", 4, offRbp),
	subGPR(RegEsp, "esp", 4, offRsp),
	subGPR(RegR8d, "r8d", 4, offR8),
	subGPR(RegR9d, "r9d", 4, offR9),
	subGPR(RegR10d, "r10d", 4, offR10),
	subGPR(RegR11d, "r11d", 4, offR11),
	subGPR(RegR12d, "r12d", 4, offR12),
	subGPR(RegR13d, "r13d", 4, offR13),
	subGPR(RegR14d, "r14d", 4, offR14),
	subGPR(RegR15d, "r15d", 4, offR15),

	subGPR(RegAx, "ax", 2, offRax),
	subGPR(RegDx, "dx", 2, offRdx),
	subGPR(RegCx, "cx", 2, offRcx),
	subGPR(RegBx, "bx", 2, offRbx),
	subGPR(RegSi, "si", 2, offRsi),
	subGPR(RegDi, "di", 2, offRdi),
	subGPR(RegBp, "bp", 2, offRbp),
	subGPR(RegSp, "sp", 2, offRsp),
	subGPR(RegR8w, "r8w", 2, offR8),
	subGPR(RegR9w, "r9w", 2, offR9),
	subGPR(RegR10w, "r10w", 2, offR10),
	subGPR(RegR11w, "r11w", 2, offR11),
	subGPR(RegR12w, "r12w", 2, offR12),
	subGPR(RegR13w, "r13w", 2, offR13),
	subGPR(RegR14w, "r14w", 2, offR14),
	subGPR(RegR15w, "r15w", 2, offR15),

	subGPR(RegAh, "ah", 1, offRax+1),
	subGPR(RegDh, "dh", 1, offRdx+1),
	subGPR(RegCh, "ch", 1, offRcx+1),
	subGPR(RegBh, "bh", 1, offRbx+1),

	subGPR(RegAl, "al", 1, offRax),
	subGPR(RegDl, "dl", 1, offRdx),
	subGPR(RegCl, "cl", 1, offRcx),
	subGPR(RegBl, "bl", 1, offRbx),
	subGPR(RegSil, "sil", 1, offRsi),
	subGPR(RegDil, "dil", 1, offRdi),
	subGPR(RegBpl, "bpl", 1, offRbp),
	subGPR(RegSpl, "spl", 1, offRsp),
	subGPR(RegR8b, "r8b", 1, offR8),
	subGPR(RegR9b, "r9b", 1, offR9),
	subGPR(RegR10b, "r10b", 1, offR10),
	subGPR(RegR11b, "r11b", 1, offR11),
	subGPR(RegR12b, "r12b", 1, offR12),
	subGPR(RegR13b, "r13b", 1, offR13),
	subGPR(RegR14b, "r14b", 1, offR14),
	subGPR(RegR15b, "r15b", 1, offR15),

	fpr(RegFcw, "fcw", 65, 2, offFcw),
	fpr(RegFsw, "fsw", 66, 2, offFsw),
	fpr(RegFtw, "ftw", -1, 2, offFtw),
	fpr(RegFop, "fop", -1, 2, offFop),
	fpr(RegFrip, "frip", -1, 8, offFrip),
	fpr(RegFrdp, "frdp", -1, 8, offFrdp),
	fpr(RegMxcsr, "mxcsr", 64, 4, offMxcsr),
	fpr(RegMxcsrmask, "mxcsrmask", -1, 4, offMxmask),

	fpSt(RegSt0), fpSt(RegSt1), fpSt(RegSt2), fpSt(RegSt3),
	fpSt(RegSt4), fpSt(RegSt5), fpSt(RegSt6), fpSt(RegSt7),

	fpMm(RegMm0), fpMm(RegMm1), fpMm(RegMm2), fpMm(RegMm3),
	fpMm(RegMm4), fpMm(RegMm5), fpMm(RegMm6), fpMm(RegMm7),

	fpXmm(RegXmm0), fpXmm(RegXmm1), fpXmm(RegXmm2), fpXmm(RegXmm3),
	fpXmm(RegXmm4), fpXmm(RegXmm5), fpXmm(RegXmm6), fpXmm(RegXmm7),
	fpXmm(RegXmm8), fpXmm(RegXmm9), fpXmm(RegXmm10), fpXmm(RegXmm11),
	fpXmm(RegXmm12), fpXmm(RegXmm13), fpXmm(RegXmm14), fpXmm(RegXmm15),

	dr(RegDr0), dr(RegDr1), dr(RegDr2), dr(RegDr3),
	dr(RegDr4), dr(RegDr5), dr(RegDr6), dr(RegDr7),
}

// RegisterInfos returns the whole catalog in declaration order.
func RegisterInfos() []RegInfo { return regInfos }

var errRegNotFound = &Error{Msg: "can't find register info"}

// RegInfoByID returns the descriptor for id.
func RegInfoByID(id RegID) (RegInfo, error) {
	for _, info := range regInfos {
		if info.ID == id {
			return info, nil
		}
	}
	return RegInfo{}, errRegNotFound
}

// RegInfoByName returns the descriptor for the register named name.
func RegInfoByName(name string) (RegInfo, error) {
	for _, info := range regInfos {
		if info.Name == name {
			return info, nil
		}
	}
	return RegInfo{}, errRegNotFound
}

// RegInfoByDwarf returns the descriptor for the DWARF register number.
func RegInfoByDwarf(dwarfID int) (RegInfo, error) {
	if dwarfID >= 0 {
		for _, info := range regInfos {
			if info.DwarfID == dwarfID {
				return info, nil
			}
		}
	}
	return RegInfo{}, errRegNotFound
}
