//go:build linux

// Package seccomp builds and installs the BPF classifier program that the
// kernel's seccomp filter runs against every syscall the tracee makes.
//
// Programs are assembled with golang.org/x/net/bpf (the same library
// DataDog's process ptracer and the cros-bazel fakefs tracee use to build
// seccomp filters) rather than hand-written instruction bytes, so
// instruction encoding is handled by the library instead of a bespoke
// encoder. Jump displacements are computed by Build from the fixed
// program layout.
package seccomp

import (
	"fmt"
	"unsafe"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/cagewall/syscage/internal/config"
)

// auditArchX86_64 is the AUDIT_ARCH_X86_64 constant the kernel places in
// the seccomp_data.arch field for native 64-bit syscalls.
const auditArchX86_64 = 0xc000003e

// x32SyscallBoundary mirrors config.x32SyscallBoundary; syscall numbers
// above it belong to the renumbered x32 ABI and are always killed.
const x32SyscallBoundary = 0x3fffffff

// seccomp_data field offsets (struct seccomp_data{ nr int; arch __u32; ... }).
const (
	seccompDataOffNR   = 0
	seccompDataOffArch = 4
)

// Seccomp return-action verdicts. golang.org/x/sys/unix does not export
// these on every platform build, so they are defined locally, matching
// the idiom of a pack sibling's hand-rolled SECCOMP_RET_* constants.
const (
	seccompRetKillProcess = 0x80000000
	seccompRetTrace       = 0x7ff00000
	seccompRetErrno       = 0x00050000
	seccompRetAllow       = 0x7fff0000
)

const seccompSetModeFilter = 1

// Build assembles the BPF classifier described by cfg: a filter that
// rejects the x32 ABI and any non-x86_64 architecture outright, traps or
// stubs the configured syscalls, and allows everything else.
//
// The program shape is fixed: load arch, kill on mismatch; load syscall
// number, kill past the x32 boundary; for each configured syscall emit a
// match-and-return pair; terminate with an allow instruction, then a
// kill instruction as the landing pad for both earlier mismatches.
func Build(cfg *config.Config) ([]unix.SockFilter, error) {
	n := len(cfg.Syscalls)
	if n == 0 {
		return nil, fmt.Errorf("seccomp: no syscalls configured")
	}

	verdict, err := dispositionVerdict(cfg)
	if err != nil {
		return nil, err
	}

	// Instruction layout (indices):
	//   0: load arch
	//   1: jump if arch == x86_64 -> continue; else -> kill
	//   2: load nr
	//   3: jump if nr > x32 boundary -> kill; else -> continue
	//   4 .. 4+2n-1: n (jump-on-match, return) pairs
	//   4+2n: allow
	//   4+2n+1: kill
	allowIdx := 4 + 2*n
	killIdx := allowIdx + 1

	if killIdx-1-1 > 0xff || killIdx-3-1 > 0xff {
		return nil, fmt.Errorf("seccomp: too many syscalls (%d) for an 8-bit BPF jump displacement", n)
	}

	prog := make([]bpf.Instruction, 0, killIdx+1)
	prog = append(prog,
		bpf.LoadAbsolute{Off: seccompDataOffArch, Size: 4},
		bpf.JumpIf{
			Cond:      bpf.JumpEqual,
			Val:       auditArchX86_64,
			SkipTrue:  0,
			SkipFalse: uint8(killIdx - 1 - 1),
		},
		bpf.LoadAbsolute{Off: seccompDataOffNR, Size: 4},
		bpf.JumpIf{
			Cond:      bpf.JumpGreaterThan,
			Val:       x32SyscallBoundary,
			SkipTrue:  uint8(killIdx - 3 - 1),
			SkipFalse: 0,
		},
	)

	for _, s := range cfg.Syscalls {
		prog = append(prog,
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: s, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: verdict},
		)
	}

	prog = append(prog,
		bpf.RetConstant{Val: seccompRetAllow},
		bpf.RetConstant{Val: seccompRetKillProcess},
	)

	raw, err := bpf.Assemble(prog)
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble filter: %w", err)
	}

	filters := make([]unix.SockFilter, len(raw))
	for i, inst := range raw {
		filters[i] = unix.SockFilter{Code: inst.Op, Jt: inst.Jt, Jf: inst.Jf, K: inst.K}
	}
	return filters, nil
}

// dispositionVerdict computes the single BPF return value shared by every
// configured syscall's match arm: SECCOMP_RET_TRACE under tracer-assisted
// modes (the condition itself is resolved in user space), or the direct
// kernel-enforced verdict otherwise.
func dispositionVerdict(cfg *config.Config) (uint32, error) {
	if cfg.Mode.TracerAssisted() {
		return seccompRetTrace, nil
	}
	switch cfg.Action.Kind {
	case config.ActionReturnErrno:
		return seccompRetErrno | uint32(cfg.Action.Errno), nil
	case config.ActionKillProcess:
		return seccompRetKillProcess, nil
	default:
		return 0, fmt.Errorf("seccomp: unknown action kind %v", cfg.Action.Kind)
	}
}

// Install loads filter as the calling task's seccomp filter in
// SECCOMP_SET_MODE_FILTER mode. The caller must have already set
// no-new-privileges (PR_SET_NO_NEW_PRIVS); Install does not set it, since
// that is a process-wide, set-once flag owned by the launcher.
func Install(filter []unix.SockFilter) error {
	if len(filter) == 0 {
		return fmt.Errorf("seccomp: empty filter program")
	}
	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	_, _, errno := unix.Syscall(unix.SYS_SECCOMP, seccompSetModeFilter, 0, uintptr(unsafe.Pointer(&prog)))
	if errno != 0 {
		return fmt.Errorf("seccomp: SECCOMP_SET_MODE_FILTER: %w", errno)
	}
	return nil
}
