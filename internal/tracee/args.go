//go:build linux

package tracee

import (
	"fmt"
	"syscall"
)

// ArgAt returns the pos-th syscall argument (0..=5) from a register
// snapshot taken at a syscall-entry trap, per the x86_64 System V syscall
// ABI: rdi, rsi, rdx, r10, r8, r9. Position 3 reads r10, not rcx, since
// rcx is clobbered by the syscall instruction itself.
//
// Any pos outside 0..=5 is a programmer error, not a tracee-supplied
// value, and panics rather than returning an error.
func ArgAt(regs *syscall.PtraceRegs, pos uint8) uint64 {
	switch pos {
	case 0:
		return regs.Rdi
	case 1:
		return regs.Rsi
	case 2:
		return regs.Rdx
	case 3:
		return regs.R10
	case 4:
		return regs.R8
	case 5:
		return regs.R9
	default:
		panic(fmt.Sprintf("tracee: argument position %d out of range 0..=5", pos))
	}
}

// SyscallNumber returns the syscall number from the "original accumulator"
// slot of a syscall-entry register snapshot.
func SyscallNumber(regs *syscall.PtraceRegs) uint64 {
	return regs.Orig_rax
}
