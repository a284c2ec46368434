// Package proc owns a traced inferior process and mediates all low-level
// interaction with it: launching and attaching, waiting on state
// transitions, register access, stoppoints and target memory I/O.
//
// The package is single threaded by design. Operations run on the
// caller's goroutine and block until done; the only long block is
// WaitOnSignal, which sits in waitpid until the inferior stops or dies.
package proc

import (
	"os"
	"os/exec"
	"runtime"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/nullicist-aakash/debugger/pkg/logflags"
	"github.com/nullicist-aakash/debugger/pkg/proc/amd64util"
)

// ProcessState is the debugger's view of the inferior's run state.
type ProcessState int

const (
	// StateStopped means the inferior is stopped by a signal.
	StateStopped ProcessState = iota
	// StateRunning means the inferior is running.
	StateRunning
	// StateExited means the inferior exited on its own. Terminal.
	StateExited
	// StateTerminated means an uncaught signal killed the inferior. Terminal.
	StateTerminated
)

func (s ProcessState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// TrapReason refines a SIGTRAP stop, derived from the debug status
// register.
type TrapReason int

const (
	TrapNone TrapReason = iota
	TrapSoftwareBreak
	TrapSingleStep
	TrapHardwareStoppoint
	TrapUnknown
)

// StopReason describes why a wait returned. Info is the delivered signal
// for stopped, the exit status for exited and the killing signal for
// terminated.
type StopReason struct {
	State ProcessState
	Info  uint8
	Trap  TrapReason
}

func stopReasonFromStatus(status sys.WaitStatus) (StopReason, error) {
	switch {
	case status.Exited():
		return StopReason{State: StateExited, Info: uint8(status.ExitStatus())}, nil
	case status.Signaled():
		return StopReason{State: StateTerminated, Info: uint8(status.Signal())}, nil
	case status.Stopped():
		return StopReason{State: StateStopped, Info: uint8(status.StopSignal())}, nil
	}
	return StopReason{}, errorf("unexpected wait status: %#x", int(status))
}

// Process is a traced inferior. It owns the register file and all
// stoppoints set on the target; both write through the process, so they
// are only valid while it is.
type Process struct {
	pid            int
	terminateOnEnd bool
	attached       bool
	state          ProcessState

	regs            *Registers
	breakpointSites StoppointCollection[*BreakpointSite]
	watchpoints     StoppointCollection[*Watchpoint]

	log logflags.Logger
}

func newProcess(pid int, terminateOnEnd, attached bool) *Process {
	p := &Process{
		pid:            pid,
		terminateOnEnd: terminateOnEnd,
		attached:       attached,
		state:          StateStopped,
		log:            logflags.DebuggerLogger(),
	}
	p.regs = newRegisters(p)
	return p
}

const _ADDR_NO_RANDOMIZE = 0x0040000 // ADDR_NO_RANDOMIZE linux constant

// Launch starts path with no arguments. With debug set the child asks to
// be traced before exec and Launch returns with it stopped at its first
// instruction; otherwise the child just runs. stdout, when non-nil,
// replaces the child's standard output.
//
// Address space randomization is disabled for the child so breakpoint
// addresses stay meaningful across restarts.
func Launch(path string, debug bool, stdout *os.File) (*Process, error) {
	// ptrace expects all requests after PTRACE_TRACEME to come from the
	// same thread.
	runtime.LockOSThread()

	cmd := exec.Command(path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if stdout != nil {
		cmd.Stdout = stdout
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:  debug,
		Setpgid: true,
	}

	// Children inherit the parent's personality, so flip ASLR off around
	// the fork and restore it after.
	oldPersonality, _, perr := syscall.Syscall(sys.SYS_PERSONALITY, personalityGet, 0, 0)
	if perr == syscall.Errno(0) {
		syscall.Syscall(sys.SYS_PERSONALITY, oldPersonality|_ADDR_NO_RANDOMIZE, 0, 0)
		defer syscall.Syscall(sys.SYS_PERSONALITY, oldPersonality, 0, 0)
	}

	// The runtime's fork/exec carries any pre-exec or exec failure back
	// over a close-on-exec pipe; a failed exec surfaces here with the
	// child's errno.
	if err := cmd.Start(); err != nil {
		runtime.UnlockOSThread()
		return nil, errorf("could not launch %s: %v", path, err)
	}

	p := newProcess(cmd.Process.Pid, true, debug)
	if !debug {
		p.state = StateRunning
		return p, nil
	}

	p.log.Debugf("launched %s, pid %d", path, p.pid)
	if _, err := p.WaitOnSignal(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

const personalityGet = 0xffffffff // ask personality(2) for the current value

// Attach attaches to a running process.
func Attach(pid int) (*Process, error) {
	if pid <= 0 {
		return nil, errorf("invalid PID: %d", pid)
	}

	runtime.LockOSThread()

	if err := ptraceAttach(pid); err != nil {
		runtime.UnlockOSThread()
		return nil, errnoError("could not attach", err)
	}

	p := newProcess(pid, false, true)
	p.log.Debugf("attached to pid %d", pid)
	if _, err := p.WaitOnSignal(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Pid returns the inferior's process id.
func (p *Process) Pid() int { return p.pid }

// State returns the inferior's current run state.
func (p *Process) State() ProcessState { return p.state }

// GetRegisters returns the process's register file. Valid to inspect only
// while the process is stopped.
func (p *Process) GetRegisters() *Registers { return p.regs }

// BreakpointSites returns the collection of breakpoint sites.
func (p *Process) BreakpointSites() *StoppointCollection[*BreakpointSite] {
	return &p.breakpointSites
}

// Watchpoints returns the collection of watchpoints.
func (p *Process) Watchpoints() *StoppointCollection[*Watchpoint] {
	return &p.watchpoints
}

// GetPC returns the program counter.
func (p *Process) GetPC() VirtAddr { return p.regs.pc() }

// SetPC sets the program counter.
func (p *Process) SetPC(addr VirtAddr) error {
	return p.regs.WriteByID(RegRip, addr.Addr())
}

// Resume continues the inferior. A software breakpoint at the current
// program counter is transparently stepped over first: the patch is
// lifted, the original instruction single-stepped, the patch restored.
func (p *Process) Resume() error {
	if pc := p.GetPC(); p.breakpointSites.EnabledStoppointAtAddress(pc) {
		bp, err := p.breakpointSites.GetByAddress(pc)
		if err != nil {
			return err
		}
		if !bp.IsHardware() {
			if err := bp.Disable(); err != nil {
				return err
			}
			if err := ptraceSingleStep(p.pid); err != nil {
				return errnoError("failed a single step", err)
			}
			if _, err := p.WaitOnSignal(); err != nil {
				return err
			}
			if err := bp.Enable(); err != nil {
				return err
			}
		}
	}

	if err := ptraceCont(p.pid); err != nil {
		return errnoError("could not resume", err)
	}
	p.state = StateRunning
	p.log.Debugf("resumed pid %d", p.pid)
	return nil
}

// WaitOnSignal blocks until the inferior stops or dies and returns the
// reason. On a stop the register cache is refreshed; a SIGTRAP caused by
// an INT3 patch leaves the program counter one byte past the breakpoint,
// so it is rewound onto the breakpoint address.
func (p *Process) WaitOnSignal() (StopReason, error) {
	var status sys.WaitStatus
	if _, err := sys.Wait4(p.pid, &status, 0, nil); err != nil {
		return StopReason{}, errnoError("waitpid failed", err)
	}

	reason, err := stopReasonFromStatus(status)
	if err != nil {
		return StopReason{}, err
	}
	p.state = reason.State

	if p.attached && p.state == StateStopped {
		if err := p.readAllRegisters(); err != nil {
			return StopReason{}, err
		}

		if reason.Info == uint8(sys.SIGTRAP) {
			if instrStart := p.GetPC().Sub(1); p.breakpointSites.EnabledStoppointAtAddress(instrStart) {
				if bp, _ := p.breakpointSites.GetByAddress(instrStart); bp != nil && !bp.IsHardware() {
					if err := p.SetPC(instrStart); err != nil {
						return StopReason{}, err
					}
				}
			}
			reason.Trap = p.trapReason()
		}
	}

	p.log.Debugf("pid %d: %s (info %d)", p.pid, reason.State, reason.Info)
	return reason, nil
}

// trapReason classifies a SIGTRAP by inspecting dr6 from the refreshed
// cache. A debug-register hit leaves its condition bit set; a single step
// sets bit 14; everything else is an INT3.
func (p *Process) trapReason() TrapReason {
	dr6 := p.regs.debugReg(6)

	reason := TrapSoftwareBreak
	switch {
	case amd64util.ConditionHit(dr6):
		reason = TrapHardwareStoppoint
		dr := [8]uint64{}
		for i := range dr {
			dr[i] = p.regs.debugReg(i)
		}
		drs := amd64util.NewDebugRegisters(&dr[0], &dr[1], &dr[2], &dr[3], &dr[6], &dr[7])
		if ok, idx := drs.HitIndex(); ok {
			p.log.Debugf("pid %d: hardware stoppoint %d hit", p.pid, idx)
		}
	case amd64util.SingleStep(dr6):
		reason = TrapSingleStep
	}

	// The sticky bits stay set until someone clears them, and an INT3 is
	// not a debug exception so the kernel won't. That someone is us, or
	// the next stop reads this one's leftovers.
	if cleared := dr6 &^ amd64util.DR6Volatile; cleared != dr6 {
		if err := p.regs.WriteByID(RegDr6, cleared); err != nil {
			p.log.Debugf("pid %d: clearing dr6: %v", p.pid, err)
		}
	}
	return reason
}

// StepInstruction executes exactly one instruction and returns the stop
// reason. A software breakpoint at the program counter is lifted for the
// duration of the step.
func (p *Process) StepInstruction() (StopReason, error) {
	var toReenable *BreakpointSite
	if pc := p.GetPC(); p.breakpointSites.EnabledStoppointAtAddress(pc) {
		bp, err := p.breakpointSites.GetByAddress(pc)
		if err != nil {
			return StopReason{}, err
		}
		if !bp.IsHardware() {
			if err := bp.Disable(); err != nil {
				return StopReason{}, err
			}
			toReenable = bp
		}
	}

	if err := ptraceSingleStep(p.pid); err != nil {
		return StopReason{}, errnoError("could not single step", err)
	}
	reason, err := p.WaitOnSignal()

	if toReenable != nil {
		if enableErr := toReenable.Enable(); enableErr != nil && err == nil {
			err = enableErr
		}
	}
	return reason, err
}

// CreateBreakpointSite registers a breakpoint site at addr. The site is
// created disabled; call Enable on the returned site to install it. At
// most one site may exist per address.
func (p *Process) CreateBreakpointSite(addr VirtAddr, hardware, internal bool) (*BreakpointSite, error) {
	if p.breakpointSites.ContainsAddress(addr) {
		return nil, errorf("breakpoint site already created at address %#x", addr.Addr())
	}
	return p.breakpointSites.Push(newBreakpointSite(p, addr, hardware, internal)), nil
}

// CreateWatchpoint registers a watchpoint over size bytes at addr, which
// must be size-aligned. The watchpoint is created disabled.
func (p *Process) CreateWatchpoint(addr VirtAddr, mode StoppointMode, size uint) (*Watchpoint, error) {
	if p.watchpoints.ContainsAddress(addr) {
		return nil, errorf("watchpoint already created at address %#x", addr.Addr())
	}
	wp, err := newWatchpoint(p, addr, mode, size)
	if err != nil {
		return nil, err
	}
	return p.watchpoints.Push(wp), nil
}

// ReadMemory reads n bytes starting at addr from the inferior.
func (p *Process) ReadMemory(addr VirtAddr, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	data := make([]byte, n)
	read, err := processVmRead(p.pid, addr, data)
	if err != nil {
		return nil, errnoError("could not read process memory", err)
	}
	if read != n {
		return nil, errorf("could not read process memory: short read (%d of %d bytes)", read, n)
	}
	return data, nil
}

// ReadMemoryWithoutTraps reads like ReadMemory but replaces every byte
// patched by an enabled software breakpoint with the original instruction
// byte. Disassemblers want this view.
func (p *Process) ReadMemoryWithoutTraps(addr VirtAddr, n int) ([]byte, error) {
	data, err := p.ReadMemory(addr, n)
	if err != nil {
		return nil, err
	}
	end := addr.Add(int64(n))
	p.breakpointSites.ForEach(func(bp *BreakpointSite) {
		if bp.Enabled() && !bp.IsHardware() && bp.InRange(addr, end) {
			data[bp.Address().Addr()-addr.Addr()] = bp.savedByte()
		}
	})
	return data, nil
}

// WriteMemory writes data to addr in the inferior. Enabled software
// breakpoints overlapping the written range are lifted for the duration of
// the write and re-installed afterwards, so their patches and saved bytes
// stay coherent.
func (p *Process) WriteMemory(addr VirtAddr, data []byte) error {
	end := addr.Add(int64(len(data)))
	var lifted []*BreakpointSite
	var errOut error
	p.breakpointSites.ForEach(func(bp *BreakpointSite) {
		if errOut != nil || !bp.Enabled() || bp.IsHardware() || !bp.InRange(addr, end) {
			return
		}
		if err := bp.Disable(); err != nil {
			errOut = err
			return
		}
		lifted = append(lifted, bp)
	})

	if errOut == nil {
		if err := ptracePokeData(p.pid, addr, data); err != nil {
			errOut = errnoError("failed to write memory", err)
		}
	}

	for _, bp := range lifted {
		if err := bp.Enable(); err != nil && errOut == nil {
			errOut = err
		}
	}
	return errOut
}

// WriteUserStruct writes one word into the user area at offset, which must
// be word aligned.
func (p *Process) WriteUserStruct(offset uintptr, word uint64) error {
	if err := ptracePokeUser(p.pid, offset, word); err != nil {
		return errnoError("could not write to user struct", err)
	}
	return nil
}

// WriteGPRs bulk-writes the general purpose register bank.
func (p *Process) WriteGPRs(gprs []byte) error {
	if err := ptraceSetRegs(p.pid, gprs); err != nil {
		return errnoError("could not set GPR registers", err)
	}
	return nil
}

// WriteFPRs bulk-writes the floating point register bank.
func (p *Process) WriteFPRs(fprs []byte) error {
	if err := ptraceSetFPRegs(p.pid, fprs); err != nil {
		return errnoError("could not set FPR registers", err)
	}
	return nil
}

// readAllRegisters refreshes the register cache: bulk reads for the GPR
// and FP banks, PEEKUSER word reads for the eight debug registers.
func (p *Process) readAllRegisters() error {
	if err := ptraceGetRegs(p.pid, p.regs.gprData()); err != nil {
		return errnoError("could not read GPR registers", err)
	}
	if err := ptraceGetFPRegs(p.pid, p.regs.fprData()); err != nil {
		return errnoError("could not read FPR registers", err)
	}
	for i := 0; i < 8; i++ {
		info, err := RegInfoByID(RegDr0 + RegID(i))
		if err != nil {
			return err
		}
		word, err := ptracePeekUser(p.pid, uintptr(info.Offset))
		if err != nil {
			return errnoError("could not read debug registers", err)
		}
		p.regs.setDebugReg(i, word)
	}
	return nil
}

// setHardwareBreakpoint claims a debug register slot for an execute trap
// at addr and returns the slot index.
func (p *Process) setHardwareBreakpoint(id int32, addr VirtAddr) (int, error) {
	return p.setHardwareStoppoint(addr, amd64util.CondExecute, 1)
}

// setWatchpoint claims a debug register slot for a data trap and returns
// the slot index.
func (p *Process) setWatchpoint(id int32, addr VirtAddr, mode StoppointMode, size uint) (int, error) {
	var cond amd64util.Condition
	switch mode {
	case ModeExecute:
		cond = amd64util.CondExecute
	case ModeWrite:
		cond = amd64util.CondWrite
	case ModeReadWrite:
		cond = amd64util.CondReadWrite
	default:
		return -1, errorf("invalid stoppoint mode")
	}
	return p.setHardwareStoppoint(addr, cond, size)
}

// setHardwareStoppoint programs the lowest free debug register slot. The
// current allocation state comes from the cached dr7, which is refreshed
// on every stop.
func (p *Process) setHardwareStoppoint(addr VirtAddr, cond amd64util.Condition, size uint) (int, error) {
	dr := [8]uint64{}
	for i := range dr {
		dr[i] = p.regs.debugReg(i)
	}
	drs := amd64util.NewDebugRegisters(&dr[0], &dr[1], &dr[2], &dr[3], &dr[6], &dr[7])

	idx, err := drs.FreeSlot()
	if err != nil {
		return -1, errorf("no free debug registers")
	}
	if err := drs.SetStoppoint(idx, addr.Addr(), cond, size); err != nil {
		return -1, errorf("%s", err)
	}

	if err := p.regs.WriteByID(RegDr0+RegID(idx), dr[idx]); err != nil {
		return -1, err
	}
	if err := p.regs.WriteByID(RegDr7, dr[7]); err != nil {
		return -1, err
	}
	return int(idx), nil
}

// clearHardwareStoppoint releases a debug register slot.
func (p *Process) clearHardwareStoppoint(slot int) error {
	dr := [8]uint64{}
	for i := range dr {
		dr[i] = p.regs.debugReg(i)
	}
	drs := amd64util.NewDebugRegisters(&dr[0], &dr[1], &dr[2], &dr[3], &dr[6], &dr[7])
	drs.ClearStoppoint(uint8(slot))

	if err := p.regs.WriteByID(RegDr0+RegID(slot), uint64(0)); err != nil {
		return err
	}
	return p.regs.WriteByID(RegDr7, dr[7])
}

// Close tears the debugger session down. An attached inferior is stopped
// if needed, detached and sent SIGCONT; one we launched ourselves is
// killed and reaped. All syscalls here are best effort.
func (p *Process) Close() {
	if p.pid == 0 {
		return
	}
	p.log.Debugf("closing pid %d", p.pid)

	if p.attached {
		if p.state == StateRunning {
			sys.Kill(p.pid, sys.SIGSTOP)
			var status sys.WaitStatus
			sys.Wait4(p.pid, &status, 0, nil)
		}
		ptraceDetach(p.pid)
		sys.Kill(p.pid, sys.SIGCONT)
	}

	if p.terminateOnEnd {
		sys.Kill(p.pid, sys.SIGKILL)
		var status sys.WaitStatus
		sys.Wait4(p.pid, &status, 0, nil)
	}
	p.pid = 0
}
