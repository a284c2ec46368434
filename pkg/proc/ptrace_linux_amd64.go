package proc

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// Thin wrappers around the trace syscalls the process state machine is
// built on. ptrace demands that every request after PTRACE_TRACEME /
// PTRACE_ATTACH comes from the same thread, which is why Launch and Attach
// lock the goroutine to its OS thread.

func ptraceCont(pid int) error {
	return sys.PtraceCont(pid, 0)
}

func ptraceSingleStep(pid int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), 0, 0, 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

func ptraceAttach(pid int) error {
	return sys.PtraceAttach(pid)
}

func ptraceDetach(pid int) error {
	return sys.PtraceDetach(pid)
}

func ptraceGetRegs(pid int, regs []byte) error {
	return sys.PtraceGetRegs(pid, (*sys.PtraceRegs)(unsafe.Pointer(&regs[0])))
}

func ptraceSetRegs(pid int, regs []byte) error {
	return sys.PtraceSetRegs(pid, (*sys.PtraceRegs)(unsafe.Pointer(&regs[0])))
}

func ptraceGetFPRegs(pid int, fpregs []byte) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_GETFPREGS), uintptr(pid), 0, uintptr(unsafe.Pointer(&fpregs[0])), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

func ptraceSetFPRegs(pid int, fpregs []byte) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SETFPREGS), uintptr(pid), 0, uintptr(unsafe.Pointer(&fpregs[0])), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptracePeekUser reads one word of the user area. The kernel stores the
// result through the data argument.
func ptracePeekUser(pid int, off uintptr) (uint64, error) {
	var out uint64
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_PEEKUSR), uintptr(pid), off, uintptr(unsafe.Pointer(&out)), 0, 0)
	if e1 != 0 {
		return 0, e1
	}
	return out, nil
}

func ptracePokeUser(pid int, off uintptr, word uint64) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_POKEUSR), uintptr(pid), off, uintptr(word), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

func ptracePeekData(pid int, addr VirtAddr, data []byte) error {
	_, err := sys.PtracePeekData(pid, uintptr(addr), data)
	return err
}

// ptracePokeData writes data word by word; x/sys splices trailing sub-word
// writes through a PEEKDATA read-back, the same dance the kernel API
// forces on everyone.
func ptracePokeData(pid int, addr VirtAddr, data []byte) error {
	_, err := sys.PtracePokeData(pid, uintptr(addr), data)
	return err
}

func (p *Process) peekData(addr VirtAddr, data []byte) error {
	return ptracePeekData(p.pid, addr, data)
}

func (p *Process) pokeData(addr VirtAddr, data []byte) error {
	return ptracePokeData(p.pid, addr, data)
}

// remoteIovec is like golang.org/x/sys/unix.Iovec but uses uintptr for the
// base field instead of *byte so that it can hold addresses that belong to
// the target process.
type remoteIovec struct {
	base uintptr
	len  uintptr
}

const pageSize = 0x1000

// processVmRead reads len(data) bytes from addr in the target with a
// single process_vm_readv call. The remote range is split into chunks that
// never cross a page boundary so a single unmapped page fails the smallest
// possible transfer.
func processVmRead(pid int, addr VirtAddr, data []byte) (int, error) {
	localIov := sys.Iovec{Base: &data[0], Len: uint64(len(data))}

	remote := make([]remoteIovec, 0, len(data)/pageSize+2)
	for amount := uintptr(len(data)); amount > 0; {
		upToNextPage := pageSize - uintptr(addr.Addr())&(pageSize-1)
		chunk := amount
		if chunk > upToNextPage {
			chunk = upToNextPage
		}
		remote = append(remote, remoteIovec{base: uintptr(addr), len: chunk})
		amount -= chunk
		addr = addr.Add(int64(chunk))
	}

	n, _, err := syscall.Syscall6(sys.SYS_PROCESS_VM_READV, uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)), 1,
		uintptr(unsafe.Pointer(&remote[0])), uintptr(len(remote)), 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return int(n), nil
}
