//go:build linux

// Package tracer implements the ptrace event loop that mediates
// seccomp-trapped syscalls for a traced task family.
package tracer

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/cagewall/syscage/internal/config"
	"github.com/cagewall/syscage/internal/diag"
	"github.com/cagewall/syscage/internal/tracee"
)

// ptrace options, defined locally since not every build of
// golang.org/x/sys/unix exports the full option and event-code set.
const (
	ptraceOTraceSysGood   = 0x1
	ptraceOTraceFork      = 0x2
	ptraceOTraceVFork     = 0x4
	ptraceOTraceClone     = 0x8
	ptraceOTraceExec      = 0x10
	ptraceOTraceVForkDone = 0x20
	ptraceOTraceExit      = 0x40
	ptraceOTraceSeccomp   = 0x80
	ptraceOExitKill       = 0x00100000
	ptraceOSuspendSeccomp = 0x00200000
)

// TraceOptions is the full set of ptrace options the launcher installs on
// the tracee's initial stop: seccomp-trap reporting, exit-kill of the
// whole traced family, and following clone/fork/vfork/exec so every
// descendant stays under the same filter.
const TraceOptions = ptraceOTraceSeccomp | ptraceOExitKill |
	ptraceOTraceClone | ptraceOTraceFork | ptraceOTraceVFork | ptraceOTraceExec

const (
	ptraceEventFork      = 1
	ptraceEventVFork     = 2
	ptraceEventClone     = 3
	ptraceEventExec      = 4
	ptraceEventVForkDone = 5
	ptraceEventExit      = 6
	ptraceEventSeccomp   = 7
)

// ErrTraceeContractViolation marks a fatal tracer error caused by a
// tracee passing an address that faults on its very first word, i.e. not
// a valid path pointer.
var ErrTraceeContractViolation = errors.New("tracer: tracee contract violation")

// Loop is the tracer's main event loop over a traced task family.
type Loop struct {
	cfg    *config.Config
	logger *diag.Logger
}

// New builds a Loop bound to cfg's mode/action and syscall list.
func New(cfg *config.Config, logger *diag.Logger) *Loop {
	return &Loop{cfg: cfg, logger: logger.WithComponent("tracer")}
}

// Run waits for the traced family, starting with childrenAlive = 1 for
// the tracee whose initial stop the launcher already resumed, and
// dispatches each wait-status event until the family empties or a
// seccomp-trapped syscall is acted upon with KillProcess.
func (l *Loop) Run() error {
	childrenAlive := 1

	for childrenAlive > 0 {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, unix.WALL, nil)
		if err != nil {
			if err == syscall.ECHILD {
				break
			}
			return fmt.Errorf("tracer: wait4: %w", err)
		}

		switch {
		case status.Exited(), status.Signaled():
			childrenAlive--
			l.logger.Debugf("pid %d exited, children_alive=%d", pid, childrenAlive)

		case status.Stopped() && status.StopSignal() == syscall.SIGTRAP && status.TrapCause() != 0:
			switch status.TrapCause() {
			case ptraceEventFork, ptraceEventVFork, ptraceEventClone:
				childrenAlive++
				newPid, _ := syscall.PtraceGetEventMsg(pid)
				l.logger.Debugf("new task %d (event %d), children_alive=%d", newPid, status.TrapCause(), childrenAlive)
				if err := syscall.PtraceCont(pid, 0); err != nil {
					return fmt.Errorf("tracer: cont pid %d after clone event: %w", pid, err)
				}

			case ptraceEventSeccomp:
				done, err := l.handleSeccompTrap(pid)
				if err != nil {
					return err
				}
				if done {
					return nil
				}

			default:
				// exec / vfork-done / exit-stop events carry no
				// condition this engine inspects; resume unchanged.
				if err := syscall.PtraceCont(pid, 0); err != nil {
					return fmt.Errorf("tracer: cont pid %d after event %d: %w", pid, status.TrapCause(), err)
				}
			}

		case status.Stopped():
			sig := status.StopSignal()
			l.logger.Debugf("pid %d stopped by signal %v, forwarding", pid, sig)
			if err := syscall.PtraceCont(pid, int(sig)); err != nil {
				return fmt.Errorf("tracer: cont pid %d forwarding signal %v: %w", pid, sig, err)
			}

		default:
			// Continued or otherwise uninteresting; nothing to do.
		}
	}

	return nil
}

// handleSeccompTrap filters a seccomp trap by syscall number, then by the
// configured condition, then applies the configured action. It returns
// done=true only when the configured action is KillProcess and
// this trap matched, signaling Run to return immediately and let
// PTRACE_O_EXITKILL terminate the tracee family.
func (l *Loop) handleSeccompTrap(pid int) (done bool, err error) {
	var regs syscall.PtraceRegs
	if err := syscall.PtraceGetRegs(pid, &regs); err != nil {
		return false, fmt.Errorf("tracer: getregs pid %d: %w", pid, err)
	}
	nr := tracee.SyscallNumber(&regs)

	switch l.cfg.Mode.Kind {
	case config.ModeScalarArg, config.ModePathArg:
		if nr != uint64(l.cfg.Syscalls[0]) {
			return false, l.contUnmodified(pid)
		}
	}

	switch l.cfg.Mode.Kind {
	case config.ModeScalarArg:
		val := tracee.ArgAt(&regs, l.cfg.Mode.Pos)
		if val != l.cfg.Mode.Value {
			l.logger.Debugf("pid %d arg[%d]=%d != %d, passing through", pid, l.cfg.Mode.Pos, val, l.cfg.Mode.Value)
			return false, l.contUnmodified(pid)
		}

	case config.ModePathArg:
		ptr := tracee.ArgAt(&regs, l.cfg.Mode.Pos)
		s, err := tracee.ReadPathString(pid, uintptr(ptr))
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrTraceeContractViolation, err)
		}
		if s != l.cfg.Mode.Path {
			l.logger.Debugf("pid %d path arg %q != %q, passing through", pid, s, l.cfg.Mode.Path)
			return false, l.contUnmodified(pid)
		}

	case config.ModeSameExecutable:
		target := l.cfg.Mode.Path
		if !tracee.SameExecutable(pid, target) {
			l.logger.Debugf("pid %d executable differs from %q, suspending seccomp", pid, target)
			return false, l.suspendSeccompAndCont(pid)
		}
	}

	return l.act(pid, &regs)
}

// act applies the configured disposition to a confirmed match.
func (l *Loop) act(pid int, regs *syscall.PtraceRegs) (done bool, err error) {
	switch l.cfg.Action.Kind {
	case config.ActionKillProcess:
		l.logger.Infof("pid %d: matched syscall %d, exiting tracer for kill-on-exit", pid, tracee.SyscallNumber(regs))
		// The tracer does not explicitly kill the tracee here: returning
		// from the loop relies on PTRACE_O_EXITKILL, installed at setup,
		// to tear down the tracee family when this process exits.
		return true, nil

	case config.ActionReturnErrno:
		return false, l.rewriteErrno(pid, regs, l.cfg.Action.Errno)

	default:
		return false, fmt.Errorf("tracer: unknown action kind %v", l.cfg.Action.Kind)
	}
}

// rewriteErrno performs the two-phase syscall-result rewrite: invalidate
// the syscall number to force an in-kernel rejection, single-step to the
// syscall-exit stop, then overwrite the result register with the
// configured errno. Between syscall-entry-stop and syscall-exit-stop the
// task executes zero userspace instructions, so no other syscall can
// intervene.
func (l *Loop) rewriteErrno(pid int, regs *syscall.PtraceRegs, errno uint16) (done bool, err error) {
	regs.Orig_rax = ^uint64(0)
	if err := syscall.PtraceSetRegs(pid, regs); err != nil {
		return false, fmt.Errorf("tracer: setregs (invalidate) pid %d: %w", pid, err)
	}

	if err := syscall.PtraceSyscall(pid, 0); err != nil {
		return false, fmt.Errorf("tracer: single-step to syscall-exit pid %d: %w", pid, err)
	}

	var exitStatus syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &exitStatus, 0, nil); err != nil {
		return false, fmt.Errorf("tracer: wait for syscall-exit pid %d: %w", pid, err)
	}

	var exitRegs syscall.PtraceRegs
	if err := syscall.PtraceGetRegs(pid, &exitRegs); err != nil {
		return false, fmt.Errorf("tracer: getregs (syscall-exit) pid %d: %w", pid, err)
	}
	exitRegs.Rax = uint64(errno)
	if err := syscall.PtraceSetRegs(pid, &exitRegs); err != nil {
		return false, fmt.Errorf("tracer: setregs (errno) pid %d: %w", pid, err)
	}

	if err := syscall.PtraceCont(pid, 0); err != nil {
		return false, fmt.Errorf("tracer: cont pid %d after errno rewrite: %w", pid, err)
	}
	return false, nil
}

// contUnmodified resumes a task whose trapped syscall did not match the
// configured condition, letting the kernel carry it out normally.
func (l *Loop) contUnmodified(pid int) error {
	if err := syscall.PtraceCont(pid, 0); err != nil {
		return fmt.Errorf("tracer: cont pid %d (unmodified): %w", pid, err)
	}
	return nil
}

// suspendSeccompAndCont instructs the kernel to stop trapping this task's
// syscalls for the remainder of its lifetime (PTRACE_O_SUSPEND_SECCOMP)
// and resumes it. Once a task is judged to be running a different
// executable, it is never re-evaluated.
func (l *Loop) suspendSeccompAndCont(pid int) error {
	if err := unix.PtraceSetOptions(pid, ptraceOSuspendSeccomp); err != nil {
		return fmt.Errorf("tracer: suspend seccomp for pid %d: %w", pid, err)
	}
	return l.contUnmodified(pid)
}
