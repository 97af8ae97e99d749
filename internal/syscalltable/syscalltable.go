// Package syscalltable resolves x86_64 Linux syscall names to numbers and
// back, for CLI convenience and diagnostic messages.
//
// golang.org/x/sys/unix does not export a complete x86_64 syscall-number
// table, so this is a small local map, following the same idiom as a
// hand-rolled syscall-number table keyed by architecture.
package syscalltable

import "strconv"

// byName holds a representative subset of the x86_64 table: the syscalls
// named in the scenarios this launcher targets (read/write/open/mmap/
// mprotect and neighbors) plus enough of the low numbers to be broadly
// useful. It is not exhaustive; Resolve falls back to parsing a bare
// integer for anything not listed here.
var byName = map[string]uint32{
	"read":       0,
	"write":      1,
	"open":       2,
	"close":      3,
	"stat":       4,
	"fstat":      5,
	"lstat":      6,
	"poll":       7,
	"lseek":      8,
	"mmap":       9,
	"mprotect":   10,
	"munmap":     11,
	"brk":        12,
	"rt_sigaction": 13,
	"ioctl":      16,
	"pread64":    17,
	"pwrite64":   18,
	"access":     21,
	"pipe":       22,
	"dup":        32,
	"dup2":       33,
	"socket":     41,
	"connect":    42,
	"accept":     43,
	"execve":     59,
	"exit":       60,
	"wait4":      61,
	"kill":       62,
	"fcntl":      72,
	"ptrace":     101,
	"getpid":     39,
	"clone":      56,
	"fork":       57,
	"vfork":      58,
	"rename":     82,
	"mkdir":      83,
	"rmdir":      84,
	"unlink":     87,
	"chmod":      90,
	"chown":      92,
	"openat":     257,
	"unlinkat":   263,
}

var byNumber = func() map[uint32]string {
	m := make(map[uint32]string, len(byName))
	for name, num := range byName {
		m[num] = name
	}
	return m
}()

// Resolve turns a CLI-supplied syscall token (a symbolic name or a decimal
// number) into its syscall number. An unknown name is an error; a bare
// number is accepted even if it is not present in the table, since the
// filter operates on raw numbers and need not recognize every syscall by
// name.
func Resolve(token string) (uint32, error) {
	if num, ok := byName[token]; ok {
		return num, nil
	}
	n, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, &UnknownSyscallError{Token: token}
	}
	return uint32(n), nil
}

// Name returns the symbolic name for a syscall number, or the decimal
// string if the number is not in the table.
func Name(num uint32) string {
	if name, ok := byNumber[num]; ok {
		return name
	}
	return strconv.FormatUint(uint64(num), 10)
}

// UnknownSyscallError reports a CLI token that is neither a known syscall
// name nor parseable as a number.
type UnknownSyscallError struct {
	Token string
}

func (e *UnknownSyscallError) Error() string {
	return "unknown syscall: " + strconv.Quote(e.Token)
}
