// Package main implements the syscage CLI.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cagewall/syscage/internal/config"
	"github.com/cagewall/syscage/internal/diag"
	"github.com/cagewall/syscage/internal/launcher"
	"github.com/cagewall/syscage/internal/syscalltable"
)

// Build-time variables (set via -ldflags).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	errnoFlag        string
	syscallFlags     []string
	scalarArgPos     uint8
	scalarArgValue   uint64
	scalarArgSet     bool
	pathArgPos       uint8
	pathArgPath      string
	pathArgSet       bool
	sameExePath      string
	sameExeInfer     bool
	quiet            bool
	debug            bool
	configPath       string
	showVersion      bool
	exitCode         int
)

func main() {
	// Check for the internal tracee-wrapper mode before cobra parses
	// flags, matching the launcher's self-re-exec idiom: the freshly
	// exec'd process only needs its target argv, not the original flags.
	if len(os.Args) >= 2 && os.Args[1] == launcher.ReexecMarker {
		target := os.Args[2]
		var argv []string
		if len(os.Args) > 3 {
			argv = os.Args[3:]
		}
		if err := launcher.RunTraceeWrapper(target, argv); err != nil {
			fmt.Fprintf(os.Stderr, "syscage: tracee: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rootCmd := &cobra.Command{
		Use:   "syscage [flags] -- target [args...]",
		Short: "Syscall-interception launcher: stub or kill syscalls via seccomp and ptrace",
		Long: `syscage spawns a target program and, via a kernel seccomp classifier
plus optional ptrace-driven inspection, forces chosen syscalls to either
fail with a caller-chosen errno or kill the process.

Examples:
  syscage -e crash -n mprotect -- ./x                     # kill on mprotect
  syscage -e 0 -n mprotect -- ./x                         # mprotect is a no-op success
  syscage -e 38 -n read -n write -n open -- ./x           # read/write/open all fail with errno 38
  syscage -e 38 -n mmap --scalar-arg-pos 3 --scalar-arg-value 34 -- ./x
  syscage -e 38 -n open --path-arg-pos 0 --path-arg-path /etc/shadow -- ./x
  syscage -e 38 -n read --same-exe-path /usr/bin/blue -- ./s`,
		RunE:          runCommand,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
	}

	rootCmd.Flags().StringVarP(&errnoFlag, "errno", "e", "", `"crash" or a non-negative errno value`)
	rootCmd.Flags().StringArrayVarP(&syscallFlags, "syscall", "n", nil, "syscall name or number to intercept (repeatable)")
	rootCmd.Flags().Uint8Var(&scalarArgPos, "scalar-arg-pos", 0, "argument register position 0..=5 for scalar-arg mode")
	rootCmd.Flags().Uint64Var(&scalarArgValue, "scalar-arg-value", 0, "value to match for scalar-arg mode")
	rootCmd.Flags().Uint8Var(&pathArgPos, "path-arg-pos", 0, "argument register position 0..=5 for path-arg mode")
	rootCmd.Flags().StringVar(&pathArgPath, "path-arg-path", "", "path string to match for path-arg mode")
	rootCmd.Flags().StringVarP(&sameExePath, "same-exe-path", "t", "", "absolute executable path for same-executable mode")
	rootCmd.Flags().BoolVarP(&sameExeInfer, "same-exe-infer", "z", false, "infer same-executable path from the target program")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress diagnostic output")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable verbose diagnostic output")
	rootCmd.Flags().StringVar(&configPath, "config", "", "optional JSONC config file pre-filling defaults")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version information")

	rootCmd.Flags().SetInterspersed(true)

	rootCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		scalarArgSet = cmd.Flags().Changed("scalar-arg-pos") || cmd.Flags().Changed("scalar-arg-value")
		pathArgSet = cmd.Flags().Changed("path-arg-pos") || cmd.Flags().Changed("path-arg-path")
		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "syscage: %v\n", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}

func runCommand(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("syscage - syscall-interception launcher for Linux/x86_64\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Built:   %s\n", buildTime)
		fmt.Printf("  Commit:  %s\n", gitCommit)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("no target specified; pass the program to launch and its arguments")
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cfg.Target = config.Target{Path: args[0], Argv: args[1:]}

	if errnoFlag != "" {
		action, err := parseAction(errnoFlag)
		if err != nil {
			return err
		}
		cfg.Action = action
	}

	if len(syscallFlags) > 0 {
		syscalls := make([]uint32, 0, len(syscallFlags))
		for _, tok := range syscallFlags {
			num, err := syscalltable.Resolve(tok)
			if err != nil {
				return err
			}
			syscalls = append(syscalls, num)
		}
		cfg.Syscalls = syscalls
	}

	switch {
	case scalarArgSet:
		cfg.Mode = config.Mode{Kind: config.ModeScalarArg, Pos: scalarArgPos, Value: scalarArgValue}
	case pathArgSet:
		cfg.Mode = config.Mode{Kind: config.ModePathArg, Pos: pathArgPos, Path: pathArgPath}
	case sameExePath != "":
		cfg.Mode = config.Mode{Kind: config.ModeSameExecutable, Path: sameExePath}
	case sameExeInfer:
		cfg.Mode = config.Mode{Kind: config.ModeSameExecutable}
	}

	if debug {
		cfg.Verbosity = config.VerbosityDebug
	} else if quiet {
		cfg.Verbosity = config.VerbosityQuiet
	} else {
		cfg.Verbosity = config.VerbosityNormal
	}

	logger := diag.New(verbosityToLevel(cfg.Verbosity))
	return launcher.New(cfg, logger).Run()
}

func parseAction(s string) (config.Action, error) {
	if s == "crash" {
		return config.Action{Kind: config.ActionKillProcess}, nil
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return config.Action{}, fmt.Errorf(`syscage: --errno must be "crash" or a non-negative integer, got %q`, s)
	}
	return config.Action{Kind: config.ActionReturnErrno, Errno: uint16(n)}, nil
}

func verbosityToLevel(v config.Verbosity) diag.Level {
	switch v {
	case config.VerbosityQuiet:
		return diag.Quiet
	case config.VerbosityDebug:
		return diag.Debug
	default:
		return diag.Normal
	}
}
