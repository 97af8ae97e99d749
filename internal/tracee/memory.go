//go:build linux

// Package tracee implements the pieces of the engine that inspect a
// traced task: reading strings out of its address space, extracting
// syscall arguments from a register snapshot, and checking its executable
// identity.
package tracee

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const wordSize = int(unsafe.Sizeof(uintptr(0)))

// TraceeFaultError reports a fault reading the tracee's address space at
// an offset where none is tolerated: the first word of a path read. A
// fault on any later word is not an error — see ReadPathString.
type TraceeFaultError struct {
	Pid  int
	Addr uintptr
	Err  error
}

func (e *TraceeFaultError) Error() string {
	return fmt.Sprintf("tracee %d: fault reading address %#x: %v", e.Pid, e.Addr, e.Err)
}

func (e *TraceeFaultError) Unwrap() error { return e.Err }

// ReadPathString reads a bounded NUL-terminated string from the tracee's
// virtual address space starting at addr, one machine word at a time, via
// the tracer's cross-address-space word-read primitive.
//
// A fault on the first word is a contract violation by the tracee (an
// invalid pointer was passed to a syscall expecting a path) and is
// reported as a TraceeFaultError. A fault on any later word means the
// string ended inside a valid page and the next word crossed into an
// unmapped region; what was read so far is returned as success. This is
// the one genuinely required idiom for this kernel interface: there is no
// page-granular bulk read available to an unprivileged tracer, so the
// word-at-a-time loop is kept rather than substituted with a bulk read.
func ReadPathString(pid int, addr uintptr) (string, error) {
	buf := make([]byte, 0, unix.PathMax)
	word := make([]byte, wordSize)

	for offset := 0; offset < unix.PathMax; offset += wordSize {
		for i := range word {
			word[i] = 0
		}

		n, err := syscall.PtracePeekData(pid, addr+uintptr(offset), word)
		if err != nil || n == 0 {
			if offset == 0 {
				return "", &TraceeFaultError{Pid: pid, Addr: addr, Err: err}
			}
			break
		}

		chunk, terminated := scanWord(word[:n])
		buf = append(buf, chunk...)
		if terminated {
			return string(buf), nil
		}
		if len(buf) >= unix.PathMax {
			buf = buf[:unix.PathMax]
			break
		}
	}

	return string(buf), nil
}

// scanWord returns the bytes of word up to (not including) the first NUL,
// and whether a NUL was found. Factored out of ReadPathString so the
// scanning logic is testable without an actual tracee.
func scanWord(word []byte) (data []byte, terminated bool) {
	for i, b := range word {
		if b == 0 {
			return word[:i], true
		}
	}
	return word, false
}
