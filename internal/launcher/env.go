//go:build linux

package launcher

import "strings"

// dangerousEnvPrefixes lists environment variable prefixes that can be
// used to inject code into the target image via the dynamic linker.
var dangerousEnvPrefixes = []string{"LD_"}

// dangerousEnvVars lists specific dynamic-linker environment variables to
// strip before the launcher replaces its own image with the target.
var dangerousEnvVars = []string{
	"LD_PRELOAD",
	"LD_LIBRARY_PATH",
	"LD_AUDIT",
	"LD_DEBUG",
	"LD_DEBUG_OUTPUT",
	"LD_DYNAMIC_WEAK",
	"LD_ORIGIN_PATH",
	"LD_PROFILE",
	"LD_PROFILE_OUTPUT",
	"LD_SHOW_AUXV",
	"LD_TRACE_LOADED_OBJECTS",
}

// hardenedEnv strips dynamic-linker environment variables from env before
// the launcher execs the target image. Image replacement does not grant
// new privileges (no-new-privs is already set), but a traced or filtered
// process inheriting LD_PRELOAD could still redirect the target's own
// library loading in ways the configured interception does not expect.
func hardenedEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !isDangerousEnvVar(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func isDangerousEnvVar(entry string) bool {
	key := entry
	if idx := strings.Index(entry, "="); idx != -1 {
		key = entry[:idx]
	}
	for _, prefix := range dangerousEnvPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	for _, dangerous := range dangerousEnvVars {
		if key == dangerous {
			return true
		}
	}
	return false
}
