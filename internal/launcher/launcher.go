//go:build linux

// Package launcher implements the parent/child split that sets up
// seccomp filtering and, where the configured mode requires it, ptrace
// inspection, then replaces its own image with the target program.
package launcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/cagewall/syscage/internal/config"
	"github.com/cagewall/syscage/internal/diag"
	"github.com/cagewall/syscage/internal/seccomp"
	"github.com/cagewall/syscage/internal/tracer"
)

// ErrConfigInvalid marks a Run() failure caused by Config.Validate()
// rejecting the configuration, distinguishing it from the launch-path
// failures (seccomp install, tracee exec) returned by the same method.
var ErrConfigInvalid = errors.New("launcher: invalid configuration")

// ReexecMarker is the argv[1] a tracer-assisted launch re-execs itself
// with, so the freshly exec'd (single-threaded, already-traced) process
// can install its own seccomp filter before a second execve to the real
// target. os/exec gives no hook to run code between fork and execve in
// the child, so this self-re-exec is the idiomatic Go substitute.
const ReexecMarker = "--tracee-exec"

// ConfigEnvVar carries the marshaled configuration from the parent to the
// re-exec'd tracee process; flags are not re-parsed there.
const ConfigEnvVar = "SYSCAGE_CONFIG_JSON"

// Launcher drives the install-and-exec sequence: validating configuration,
// resolving the same-executable inference path, and choosing between the
// direct and tracer-assisted launch paths.
type Launcher struct {
	cfg    *config.Config
	logger *diag.Logger
}

// New builds a Launcher for cfg; Run validates cfg before launching.
func New(cfg *config.Config, logger *diag.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logger.WithComponent("launcher")}
}

// Run validates the configuration, resolves SameExecutable's inferred
// path if requested, and dispatches to the tracer-assisted or direct
// launch path.
func (l *Launcher) Run() error {
	if err := l.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	if l.cfg.Mode.Kind == config.ModeSameExecutable && l.cfg.Mode.Path == "" {
		abs, err := canonicalize(l.cfg.Target.Path)
		if err != nil {
			return fmt.Errorf("launcher: canonicalize target path for same-executable inference: %w", err)
		}
		l.cfg.Mode.Path = abs
		l.logger.Debugf("inferred same-executable path: %s", abs)
	}

	if l.cfg.Mode.TracerAssisted() {
		return l.runTracerAssisted()
	}
	return l.runDirect()
}

// runDirect handles Unconditional mode: no tracer is needed, so the
// launcher itself enables no-new-privs, installs the filter, and becomes
// the target via image replacement.
func (l *Launcher) runDirect() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("launcher: PR_SET_NO_NEW_PRIVS: %w", err)
	}

	filter, err := seccomp.Build(l.cfg)
	if err != nil {
		return fmt.Errorf("launcher: %w", err)
	}
	if err := seccomp.Install(filter); err != nil {
		return fmt.Errorf("launcher: %w", err)
	}

	l.logger.Debugf("filter installed, exec-ing target %s", l.cfg.Target.Path)
	argv := append([]string{l.cfg.Target.Path}, l.cfg.Target.Argv...)
	return unix.Exec(l.cfg.Target.Path, argv, hardenedEnv(os.Environ()))
}

// runTracerAssisted handles ScalarArg/PathArg/SameExecutable modes: it
// re-execs itself under ptrace so the child can install its own filter
// pre-exec (see ReexecMarker), then runs the tracer event loop.
func (l *Launcher) runTracerAssisted() error {
	// ptrace state is thread-affined in the kernel; the goroutine issuing
	// every ptrace call for this tracee must stay on one OS thread for
	// the lifetime of the loop.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("launcher: resolve self executable: %w", err)
	}

	cfgJSON, err := json.Marshal(l.cfg)
	if err != nil {
		return fmt.Errorf("launcher: marshal config for tracee: %w", err)
	}

	args := append([]string{ReexecMarker, l.cfg.Target.Path}, l.cfg.Target.Argv...)
	cmd := exec.Command(exePath, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = append(hardenedEnv(os.Environ()), ConfigEnvVar+"="+string(cfgJSON))
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launcher: start tracee: %w", err)
	}
	pid := cmd.Process.Pid

	var status syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &status, 0, nil); err != nil {
		return fmt.Errorf("launcher: wait for tracee's initial stop: %w", err)
	}

	if err := syscall.PtraceSetOptions(pid, tracer.TraceOptions); err != nil {
		return fmt.Errorf("launcher: set ptrace options: %w", err)
	}
	if err := syscall.PtraceCont(pid, 0); err != nil {
		return fmt.Errorf("launcher: continue tracee past initial stop: %w", err)
	}

	l.logger.Debugf("tracee pid %d running, entering event loop", pid)
	return tracer.New(l.cfg, l.logger).Run()
}

// RunTraceeWrapper is the re-exec'd side of runTracerAssisted: it runs
// inside the process that os/exec already marked traceable via
// SysProcAttr.Ptrace, reads the configuration its parent passed via
// ConfigEnvVar, installs no-new-privs and the seccomp filter, then
// replaces its own image with the real target. The resulting second
// execve raises a PTRACE_EVENT_EXEC trap that the tracer's event loop
// handles generically (resume, no condition to inspect).
func RunTraceeWrapper(target string, argv []string) error {
	raw := os.Getenv(ConfigEnvVar)
	if raw == "" {
		return fmt.Errorf("launcher: tracee wrapper invoked without %s", ConfigEnvVar)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return fmt.Errorf("launcher: tracee wrapper: parse config: %w", err)
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("launcher: tracee wrapper: PR_SET_NO_NEW_PRIVS: %w", err)
	}

	filter, err := seccomp.Build(&cfg)
	if err != nil {
		return fmt.Errorf("launcher: tracee wrapper: %w", err)
	}
	if err := seccomp.Install(filter); err != nil {
		return fmt.Errorf("launcher: tracee wrapper: %w", err)
	}

	full := append([]string{target}, argv...)
	return unix.Exec(target, full, hardenedEnv(os.Environ()))
}

// canonicalize resolves path to an absolute, symlink-free form, used to
// turn the target program's invocation path into the SameExecutable
// comparison baseline when no explicit path was configured.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
