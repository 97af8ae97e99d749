//go:build linux

// Package syscage provides a public API for launching a program under
// syscall interception.
package syscage

import (
	"github.com/cagewall/syscage/internal/config"
	"github.com/cagewall/syscage/internal/diag"
	"github.com/cagewall/syscage/internal/launcher"
)

// Config is the launcher's configuration.
type Config = config.Config

// Action is the disposition applied to a matching syscall.
type Action = config.Action

// Mode selects what, beyond the syscall number, must match.
type Mode = config.Mode

// Target is the program to launch and its argument vector.
type Target = config.Target

const (
	ActionReturnErrno = config.ActionReturnErrno
	ActionKillProcess = config.ActionKillProcess
)

const (
	ModeUnconditional  = config.ModeUnconditional
	ModeScalarArg      = config.ModeScalarArg
	ModePathArg        = config.ModePathArg
	ModeSameExecutable = config.ModeSameExecutable
)

// DefaultConfig returns a Config with no syscalls configured; callers
// must set Syscalls and Target before Run will accept it.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a JSONC configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.LoadFile(path)
}

// Run launches cfg.Target under syscall interception per cfg's Action
// and Mode. It does not return on success in the non-tracer-assisted
// case: the calling process's image is replaced by the target.
func Run(cfg *Config, verbosity diag.Level) error {
	return launcher.New(cfg, diag.New(verbosity)).Run()
}
