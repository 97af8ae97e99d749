//go:build linux

package launcher

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cagewall/syscage/internal/config"
	"github.com/cagewall/syscage/internal/diag"
)

func TestCanonicalize(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	got, err := canonicalize(link)
	if err != nil {
		t.Fatalf("canonicalize() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(target)
	if got != want {
		t.Errorf("canonicalize(%q) = %q, want %q", link, got, want)
	}
}

func TestRunTraceeWrapperMissingEnv(t *testing.T) {
	os.Unsetenv(ConfigEnvVar)
	if err := RunTraceeWrapper("/bin/true", nil); err == nil {
		t.Error("RunTraceeWrapper() without config env var: want error, got nil")
	}
}

func TestRunWrapsConfigInvalid(t *testing.T) {
	cfg := &config.Config{} // no syscalls, no target: fails Validate()

	err := New(cfg, diag.New(diag.Quiet)).Run()
	if err == nil {
		t.Fatal("Run() with an empty config: want error, got nil")
	}
	if !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("Run() error = %v, want errors.Is(err, ErrConfigInvalid)", err)
	}
}

func TestConfigRoundTripsThroughEnv(t *testing.T) {
	cfg := &config.Config{
		Syscalls: []uint32{9},
		Action:   config.Action{Kind: config.ActionReturnErrno, Errno: 38},
		Mode:     config.Mode{Kind: config.ModePathArg, Pos: 3, Path: "34"},
		Target:   config.Target{Path: "/usr/bin/file", Argv: []string{"./x"}},
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got config.Config
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got.Mode.Kind != cfg.Mode.Kind || got.Mode.Pos != cfg.Mode.Pos || got.Mode.Path != cfg.Mode.Path {
		t.Errorf("Mode round-trip = %+v, want %+v", got.Mode, cfg.Mode)
	}
	if got.Action.Kind != cfg.Action.Kind || got.Action.Errno != cfg.Action.Errno {
		t.Errorf("Action round-trip = %+v, want %+v", got.Action, cfg.Action)
	}
}
