//go:build linux

package seccomp

import (
	"testing"

	"github.com/cagewall/syscage/internal/config"
)

func TestBuildAllowAndKillTerminals(t *testing.T) {
	cfg := &config.Config{
		Syscalls: []uint32{10, 0, 1},
		Action:   config.Action{Kind: config.ActionKillProcess},
		Mode:     config.Mode{Kind: config.ModeUnconditional},
		Target:   config.Target{Path: "/usr/bin/file"},
	}

	prog, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// 4 header instructions + 2 per syscall + allow + kill.
	wantLen := 4 + 2*len(cfg.Syscalls) + 2
	if len(prog) != wantLen {
		t.Fatalf("len(prog) = %d, want %d", len(prog), wantLen)
	}

	last := prog[len(prog)-1]
	if last.K != seccompRetKillProcess {
		t.Errorf("final instruction K = %#x, want SECCOMP_RET_KILL_PROCESS", last.K)
	}
	allow := prog[len(prog)-2]
	if allow.K != seccompRetAllow {
		t.Errorf("penultimate instruction K = %#x, want SECCOMP_RET_ALLOW", allow.K)
	}
}

func TestBuildDeterministic(t *testing.T) {
	cfg := &config.Config{
		Syscalls: []uint32{9},
		Action:   config.Action{Kind: config.ActionReturnErrno, Errno: 38},
		Mode:     config.Mode{Kind: config.ModePathArg, Pos: 3, Path: "34"},
		Target:   config.Target{Path: "/usr/bin/file"},
	}

	p1, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	p2, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(p1) != len(p2) {
		t.Fatalf("two builds differ in length: %d vs %d", len(p1), len(p2))
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("instruction %d differs between builds: %+v vs %+v", i, p1[i], p2[i])
		}
	}
}

func TestBuildTracerAssistedUsesTraceVerdict(t *testing.T) {
	cfg := &config.Config{
		Syscalls: []uint32{9},
		Action:   config.Action{Kind: config.ActionReturnErrno, Errno: 38},
		Mode:     config.Mode{Kind: config.ModePathArg, Pos: 3, Path: "34"},
		Target:   config.Target{Path: "/usr/bin/file"},
	}
	prog, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// The single configured syscall's return instruction is at index 5
	// (0:load arch,1:jmp,2:load nr,3:jmp,4:jmp-on-match,5:ret).
	ret := prog[5]
	if ret.K != seccompRetTrace {
		t.Errorf("tracer-assisted verdict K = %#x, want SECCOMP_RET_TRACE", ret.K)
	}
}

func TestBuildNoSyscalls(t *testing.T) {
	cfg := &config.Config{
		Action: config.Action{Kind: config.ActionKillProcess},
		Mode:   config.Mode{Kind: config.ModeUnconditional},
		Target: config.Target{Path: "/usr/bin/file"},
	}
	if _, err := Build(cfg); err == nil {
		t.Error("Build() with no syscalls: want error, got nil")
	}
}

func TestInstallEmptyFilter(t *testing.T) {
	if err := Install(nil); err == nil {
		t.Error("Install(nil): want error, got nil")
	}
}
