package proc

import "sync/atomic"

// StoppointMode selects what access to the watched address traps.
type StoppointMode int

const (
	ModeExecute StoppointMode = iota
	ModeWrite
	ModeReadWrite
)

func (m StoppointMode) String() string {
	switch m {
	case ModeExecute:
		return "execute"
	case ModeWrite:
		return "write"
	case ModeReadWrite:
		return "read_write"
	}
	return "unknown"
}

var watchpointIDs atomic.Int32

// Watchpoint traps on execution, write or read/write access to an address
// through one of the four hardware debug registers.
type Watchpoint struct {
	proc    *Process
	id      int32
	addr    VirtAddr
	mode    StoppointMode
	size    uint
	enabled bool
	hwSlot  int
}

func newWatchpoint(p *Process, addr VirtAddr, mode StoppointMode, size uint) (*Watchpoint, error) {
	if addr.Addr()&uint64(size-1) != 0 {
		return nil, errorf("watchpoint must be aligned to size")
	}
	return &Watchpoint{
		proc:   p,
		id:     watchpointIDs.Add(1),
		addr:   addr,
		mode:   mode,
		size:   size,
		hwSlot: -1,
	}, nil
}

// ID returns the watchpoint's unique id.
func (wp *Watchpoint) ID() int32 { return wp.id }

// Address returns the watched address.
func (wp *Watchpoint) Address() VirtAddr { return wp.addr }

// Mode returns the access kind the watchpoint traps on.
func (wp *Watchpoint) Mode() StoppointMode { return wp.mode }

// Size returns the width of the watched region in bytes.
func (wp *Watchpoint) Size() uint { return wp.size }

// Enabled reports whether the watchpoint currently holds a debug register.
func (wp *Watchpoint) Enabled() bool { return wp.enabled }

// InRange reports whether the watched address lies in [low, high).
func (wp *Watchpoint) InRange(low, high VirtAddr) bool {
	return low <= wp.addr && wp.addr < high
}

// Enable programs a free debug register for the watchpoint. Enabling an
// enabled watchpoint is a no-op.
func (wp *Watchpoint) Enable() error {
	if wp.enabled {
		return nil
	}
	slot, err := wp.proc.setWatchpoint(wp.id, wp.addr, wp.mode, wp.size)
	if err != nil {
		return err
	}
	wp.hwSlot = slot
	wp.enabled = true
	return nil
}

// Disable releases the watchpoint's debug register. Disabling a disabled
// watchpoint is a no-op.
func (wp *Watchpoint) Disable() error {
	if !wp.enabled {
		return nil
	}
	if err := wp.proc.clearHardwareStoppoint(wp.hwSlot); err != nil {
		return err
	}
	wp.hwSlot = -1
	wp.enabled = false
	return nil
}
