//go:build linux

package tracee

import (
	"fmt"
	"os"
)

// SameExecutable reports whether pid's current executable image matches
// configuredPath, via the kernel's per-process executable symbolic link
// (/proc/<pid>/exe). The comparison is byte-wise against the resolved
// link target; no canonicalization is performed here, since the
// configured path is canonicalized once at launcher startup.
//
// Either a read failure or a mismatch counts as inequality; this check
// never returns an error of its own, matching its contract as a pure
// boolean predicate consulted once per trap.
func SameExecutable(pid int, configuredPath string) bool {
	link, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return false
	}
	return link == configuredPath
}
