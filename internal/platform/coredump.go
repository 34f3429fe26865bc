// Package platform holds OS-level hardening used by the daemon.
package platform

import "golang.org/x/sys/unix"

// DisableCoreDumps zeroes the core-size rlimit so raw key material held
// in memory cannot end up in a dump on disk.
func DisableCoreDumps() error {
	var rlim unix.Rlimit
	rlim.Cur = 0
	rlim.Max = 0
	return unix.Setrlimit(unix.RLIMIT_CORE, &rlim)
}
