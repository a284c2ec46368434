package proc

import "fmt"

// VirtAddr is an address in the inferior's virtual address space.
// Conversions to and from integers are explicit so that target addresses
// never mix silently with offsets or sizes.
type VirtAddr uint64

// Addr returns the address as a plain integer.
func (a VirtAddr) Addr() uint64 { return uint64(a) }

// Add returns the address offset by delta bytes.
func (a VirtAddr) Add(delta int64) VirtAddr { return VirtAddr(uint64(a) + uint64(delta)) }

// Sub returns the address offset backwards by delta bytes.
func (a VirtAddr) Sub(delta int64) VirtAddr { return VirtAddr(uint64(a) - uint64(delta)) }

func (a VirtAddr) String() string { return fmt.Sprintf("%#x", uint64(a)) }
