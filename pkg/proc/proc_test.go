package proc_test

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/creack/pty"
	sys "golang.org/x/sys/unix"

	"github.com/nullicist-aakash/debugger/pkg/proc"
	protest "github.com/nullicist-aakash/debugger/pkg/proc/test"
)

func TestMain(m *testing.M) {
	ret := m.Run()
	protest.Clean()
	os.Exit(ret)
}

func processExists(pid int) bool {
	err := sys.Kill(pid, 0)
	return err == nil
}

// processStatus returns the status letter from /proc/<pid>/stat ('R', 'S',
// 't', ...).
func processStatus(t *testing.T, pid int) byte {
	t.Helper()
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		t.Fatalf("reading stat for %d: %v", pid, err)
	}
	idx := bytes.LastIndexByte(stat, ')')
	return stat[idx+2]
}

func launchFixture(t *testing.T, name string, debug bool, stdout *os.File) *proc.Process {
	t.Helper()
	fix := protest.BuildFixture(name)
	p, err := proc.Launch(fix.Path, debug, stdout)
	if err != nil {
		t.Fatalf("launching %s: %v", name, err)
	}
	t.Cleanup(p.Close)
	return p
}

func symbolAddr(t *testing.T, name, sym string) proc.VirtAddr {
	t.Helper()
	fix := protest.BuildFixture(name)
	addr, err := protest.SymbolAddr(fix, sym)
	if err != nil {
		t.Fatal(err)
	}
	return proc.VirtAddr(addr)
}

func resumeAndWait(t *testing.T, p *proc.Process) proc.StopReason {
	t.Helper()
	if err := p.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	reason, err := p.WaitOnSignal()
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return reason
}

func TestLaunch(t *testing.T) {
	p := launchFixture(t, "run_endlessly", true, nil)
	if !processExists(p.Pid()) {
		t.Fatalf("process %d does not exist after launch", p.Pid())
	}
	if p.State() != proc.StateStopped {
		t.Fatalf("expected stopped, got %v", p.State())
	}
}

func TestLaunchKillsOnClose(t *testing.T) {
	fix := protest.BuildFixture("run_endlessly")
	p, err := proc.Launch(fix.Path, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	pid := p.Pid()
	p.Close()
	if processExists(pid) {
		t.Fatalf("process %d still exists after close", pid)
	}
}

func TestLaunchNonExistentProgram(t *testing.T) {
	_, err := proc.Launch("some_random_nonexistent_program", true, nil)
	if err == nil {
		t.Fatal("expected launch to fail")
	}
}

func TestAttach(t *testing.T) {
	target := launchFixture(t, "run_endlessly", false, nil)

	p, err := proc.Attach(target.Pid())
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer p.Close()

	if status := processStatus(t, target.Pid()); status != 't' {
		t.Fatalf("expected trace-stopped status 't', got %c", status)
	}
}

func TestAttachInvalidPID(t *testing.T) {
	_, err := proc.Attach(0)
	var perr *proc.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected a debugger error, got %v", err)
	}
}

func TestResume(t *testing.T) {
	p := launchFixture(t, "run_endlessly", true, nil)
	if err := p.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if status := processStatus(t, p.Pid()); status != 'R' && status != 'S' {
		t.Fatalf("expected running status, got %c", status)
	}
}

func TestResumeAlreadyExited(t *testing.T) {
	p := launchFixture(t, "end_immediately", true, nil)

	reason := resumeAndWait(t, p)
	if reason.State != proc.StateExited || reason.Info != 0 {
		t.Fatalf("expected clean exit, got %+v", reason)
	}

	if err := p.Resume(); err == nil {
		t.Fatal("expected resume of exited process to fail")
	}
}

func TestRegisterWrite(t *testing.T) {
	channel, err := proc.NewPipe(false)
	if err != nil {
		t.Fatal(err)
	}
	defer channel.Close()

	w := os.NewFile(uintptr(channel.WriteFd()), "inferior-stdout")
	p := launchFixture(t, "reg_write", true, w)
	w.Close()
	channel.CloseWrite()

	readOutput := func() string {
		data, err := channel.Read()
		if err != nil {
			t.Fatalf("reading inferior output: %v", err)
		}
		return string(data)
	}

	regs := p.GetRegisters()

	// run to the first trap, then plant rsi
	resumeAndWait(t, p)
	if err := regs.WriteByID(proc.RegRsi, uint64(0xcafecafe)); err != nil {
		t.Fatal(err)
	}
	resumeAndWait(t, p)
	if out := readOutput(); out != "0xcafecafe" {
		t.Fatalf("rsi round trip: got %q", out)
	}

	if err := regs.WriteByID(proc.RegMm0, uint64(0xba5eba11)); err != nil {
		t.Fatal(err)
	}
	resumeAndWait(t, p)
	if out := readOutput(); out != "0xba5eba11" {
		t.Fatalf("mm0 round trip: got %q", out)
	}

	if err := regs.WriteByID(proc.RegXmm0, 42.42); err != nil {
		t.Fatal(err)
	}
	resumeAndWait(t, p)
	if out := readOutput(); out != "42.42" {
		t.Fatalf("xmm0 round trip: got %q", out)
	}

	// x87: load st0 and mark the register stack
	if err := regs.WriteByID(proc.RegSt0, 42.42); err != nil {
		t.Fatal(err)
	}
	if err := regs.WriteByID(proc.RegFsw, uint16(0b0011100000000000)); err != nil {
		t.Fatal(err)
	}
	if err := regs.WriteByID(proc.RegFtw, uint16(0b0011111111111111)); err != nil {
		t.Fatal(err)
	}
	resumeAndWait(t, p)
	if out := readOutput(); out != "42.42" {
		t.Fatalf("st0 round trip: got %q", out)
	}
}

func TestRegisterReadAfterWrite(t *testing.T) {
	p := launchFixture(t, "run_endlessly", true, nil)
	regs := p.GetRegisters()

	if err := regs.WriteByID(proc.RegR13, uint64(0xdeadbeef)); err != nil {
		t.Fatal(err)
	}
	v, err := regs.ReadByID(proc.RegR13)
	if err != nil {
		t.Fatal(err)
	}
	if v.(uint64) != 0xdeadbeef {
		t.Fatalf("r13 read back %#x", v)
	}

	// sub-register writes must leave the surrounding bytes alone
	if err := regs.WriteByID(proc.RegAh, uint8(0x42)); err != nil {
		t.Fatal(err)
	}
	v, err = regs.ReadByID(proc.RegAh)
	if err != nil {
		t.Fatal(err)
	}
	if v.(uint8) != 0x42 {
		t.Fatalf("ah read back %#x", v)
	}
}

func TestSoftwareBreakpoint(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	p := launchFixture(t, "global_write", true, w)
	w.Close()

	addr := symbolAddr(t, "global_write", "write_global")

	orig, err := p.ReadMemory(addr, 1)
	if err != nil {
		t.Fatal(err)
	}

	site, err := p.CreateBreakpointSite(addr, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := site.Enable(); err != nil {
		t.Fatal(err)
	}

	patched, err := p.ReadMemory(addr, 1)
	if err != nil {
		t.Fatal(err)
	}
	if patched[0] != 0xCC {
		t.Fatalf("expected INT3 at breakpoint, got %#x", patched[0])
	}
	hidden, err := p.ReadMemoryWithoutTraps(addr, 1)
	if err != nil {
		t.Fatal(err)
	}
	if hidden[0] != orig[0] {
		t.Fatalf("trap-hiding read returned %#x, want %#x", hidden[0], orig[0])
	}

	reason := resumeAndWait(t, p)
	if reason.State != proc.StateStopped || reason.Info != uint8(sys.SIGTRAP) {
		t.Fatalf("expected SIGTRAP stop, got %+v", reason)
	}
	if reason.Trap != proc.TrapSoftwareBreak {
		t.Fatalf("expected software break trap, got %v", reason.Trap)
	}
	if pc := p.GetPC(); pc != addr {
		t.Fatalf("pc = %s, want %s", pc, addr)
	}

	// resuming transparently steps over the patched instruction
	reason = resumeAndWait(t, p)
	if reason.State != proc.StateExited {
		t.Fatalf("expected exit after resume, got %+v", reason)
	}
}

func TestBreakpointEnableDisableRestoresByte(t *testing.T) {
	p := launchFixture(t, "global_write", true, nil)
	addr := symbolAddr(t, "global_write", "write_global")

	orig, err := p.ReadMemory(addr, 1)
	if err != nil {
		t.Fatal(err)
	}

	site, err := p.CreateBreakpointSite(addr, false, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := site.Enable(); err != nil {
			t.Fatal(err)
		}
		if err := site.Disable(); err != nil {
			t.Fatal(err)
		}
	}

	after, err := p.ReadMemory(addr, 1)
	if err != nil {
		t.Fatal(err)
	}
	if after[0] != orig[0] {
		t.Fatalf("byte not restored: got %#x, want %#x", after[0], orig[0])
	}
}

func TestBreakpointIDsStrictlyIncrease(t *testing.T) {
	p := launchFixture(t, "run_endlessly", true, nil)

	last := int32(-1)
	for i := 0; i < 5; i++ {
		site, err := p.CreateBreakpointSite(proc.VirtAddr(0x1000+uint64(i)*8), false, false)
		if err != nil {
			t.Fatal(err)
		}
		if site.ID() <= last {
			t.Fatalf("ids not strictly increasing: %d after %d", site.ID(), last)
		}
		last = site.ID()
	}
}

func TestDuplicateBreakpointAddress(t *testing.T) {
	p := launchFixture(t, "run_endlessly", true, nil)

	if _, err := p.CreateBreakpointSite(proc.VirtAddr(0x2000), false, false); err != nil {
		t.Fatal(err)
	}
	_, err := p.CreateBreakpointSite(proc.VirtAddr(0x2000), false, false)
	var perr *proc.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected duplicate-address error, got %v", err)
	}
}

func TestStepInstruction(t *testing.T) {
	p := launchFixture(t, "global_write", true, nil)
	addr := symbolAddr(t, "global_write", "write_global")

	site, err := p.CreateBreakpointSite(addr, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := site.Enable(); err != nil {
		t.Fatal(err)
	}
	resumeAndWait(t, p)

	reason, err := p.StepInstruction()
	if err != nil {
		t.Fatal(err)
	}
	if reason.State != proc.StateStopped || reason.Trap != proc.TrapSingleStep {
		t.Fatalf("expected single step stop, got %+v", reason)
	}
	if p.GetPC() == addr {
		t.Fatal("pc did not advance")
	}
	if !site.Enabled() {
		t.Fatal("breakpoint not re-enabled after step")
	}
}

func TestHardwareBreakpoint(t *testing.T) {
	p := launchFixture(t, "global_write", true, nil)
	addr := symbolAddr(t, "global_write", "write_global")

	site, err := p.CreateBreakpointSite(addr, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := site.Enable(); err != nil {
		t.Fatal(err)
	}

	reason := resumeAndWait(t, p)
	if reason.State != proc.StateStopped || reason.Info != uint8(sys.SIGTRAP) {
		t.Fatalf("expected SIGTRAP stop, got %+v", reason)
	}
	if reason.Trap != proc.TrapHardwareStoppoint {
		t.Fatalf("expected hardware trap, got %v", reason.Trap)
	}
	if pc := p.GetPC(); pc != addr {
		t.Fatalf("pc = %s, want %s", pc, addr)
	}
}

func TestWatchpoint(t *testing.T) {
	p := launchFixture(t, "global_write", true, nil)
	addr := symbolAddr(t, "global_write", "a_global")

	wp, err := p.CreateWatchpoint(addr, proc.ModeWrite, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := wp.Enable(); err != nil {
		t.Fatal(err)
	}

	reason := resumeAndWait(t, p)
	if reason.State != proc.StateStopped || reason.Info != uint8(sys.SIGTRAP) {
		t.Fatalf("expected SIGTRAP stop, got %+v", reason)
	}
	if reason.Trap != proc.TrapHardwareStoppoint {
		t.Fatalf("expected hardware trap, got %v", reason.Trap)
	}

	if err := wp.Disable(); err != nil {
		t.Fatal(err)
	}
	reason = resumeAndWait(t, p)
	if reason.State != proc.StateExited {
		t.Fatalf("expected exit, got %+v", reason)
	}
}

func TestWatchpointAlignment(t *testing.T) {
	p := launchFixture(t, "run_endlessly", true, nil)

	_, err := p.CreateWatchpoint(proc.VirtAddr(0x1001), proc.ModeWrite, 8)
	var perr *proc.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected alignment error, got %v", err)
	}
}

func TestHardwareDebugRegisterExhaustion(t *testing.T) {
	p := launchFixture(t, "global_write", true, nil)
	base := symbolAddr(t, "global_write", "a_global")

	wps := make([]*proc.Watchpoint, 0, 4)
	for i := 0; i < 4; i++ {
		wp, err := p.CreateWatchpoint(base.Add(int64(i)*8), proc.ModeWrite, 8)
		if err != nil {
			t.Fatal(err)
		}
		if err := wp.Enable(); err != nil {
			t.Fatalf("enabling watchpoint %d: %v", i, err)
		}
		wps = append(wps, wp)
	}

	// all four slots are taken now
	site, err := p.CreateBreakpointSite(base.Add(0x100), true, false)
	if err != nil {
		t.Fatal(err)
	}
	err = site.Enable()
	var perr *proc.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected exhaustion error, got %v", err)
	}

	// freeing one slot frees exactly one
	if err := wps[2].Disable(); err != nil {
		t.Fatal(err)
	}
	if err := site.Enable(); err != nil {
		t.Fatalf("enable after freeing a slot: %v", err)
	}
	err = wps[2].Enable()
	if !errors.As(err, &perr) {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
}

func TestReadWriteMemory(t *testing.T) {
	p := launchFixture(t, "global_write", true, nil)
	addr := symbolAddr(t, "global_write", "a_global")

	data, err := p.ReadMemory(addr, 8)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range data {
		if b != 0 {
			t.Fatalf("expected zeroed global, got % x", data)
		}
	}

	want := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	if err := p.WriteMemory(addr, want); err != nil {
		t.Fatal(err)
	}
	got, err := p.ReadMemory(addr, len(want))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back % x, want % x", got, want)
	}
}

func TestWriteMemoryPreservesBreakpoints(t *testing.T) {
	p := launchFixture(t, "global_write", true, nil)
	addr := symbolAddr(t, "global_write", "write_global")

	site, err := p.CreateBreakpointSite(addr, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := site.Enable(); err != nil {
		t.Fatal(err)
	}

	fresh := []byte{0x90, 0x90, 0x90, 0x90}
	if err := p.WriteMemory(addr, fresh); err != nil {
		t.Fatal(err)
	}

	raw, err := p.ReadMemory(addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	if raw[0] != 0xCC {
		t.Fatalf("patch clobbered by write: got %#x", raw[0])
	}
	hidden, err := p.ReadMemoryWithoutTraps(addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(hidden, fresh) {
		t.Fatalf("hidden view % x, want % x", hidden, fresh)
	}

	if err := site.Disable(); err != nil {
		t.Fatal(err)
	}
	raw, err = p.ReadMemory(addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, fresh) {
		t.Fatalf("after disable % x, want % x", raw, fresh)
	}
}

func TestDisassemble(t *testing.T) {
	p := launchFixture(t, "global_write", true, nil)
	addr := symbolAddr(t, "global_write", "write_global")

	instrs, err := p.Disassemble(addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(instrs) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(instrs))
	}
	if instrs[0].Addr != addr {
		t.Fatalf("first instruction at %s, want %s", instrs[0].Addr, addr)
	}

	// an enabled breakpoint must not show up in the decoded stream
	site, err := p.CreateBreakpointSite(addr, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := site.Enable(); err != nil {
		t.Fatal(err)
	}
	instrs2, err := p.Disassemble(addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	if instrs2[0].Text != instrs[0].Text {
		t.Fatalf("breakpoint leaked into disassembly: %q vs %q", instrs2[0].Text, instrs[0].Text)
	}
}

func TestLaunchWithTTY(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer master.Close()

	p := launchFixture(t, "hello", true, slave)
	slave.Close()

	resumeAndWait(t, p)

	line, err := bufio.NewReader(master).ReadString('\n')
	if err != nil {
		t.Fatalf("reading pty: %v", err)
	}
	if line != "hello\r\n" && line != "hello\n" {
		t.Fatalf("unexpected tty output %q", line)
	}
}

func TestPipe(t *testing.T) {
	pipe, err := proc.NewPipe(true)
	if err != nil {
		t.Fatal(err)
	}
	defer pipe.Close()

	if err := pipe.Write([]byte("fork failed")); err != nil {
		t.Fatal(err)
	}
	data, err := pipe.Read()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fork failed" {
		t.Fatalf("got %q", data)
	}

	// double close is fine
	pipe.CloseWrite()
	pipe.CloseWrite()
	pipe.CloseRead()
	pipe.CloseRead()
}
