//go:build windows

package workerpool

// suspendProcess and resumeProcess are no-ops on platforms without
// POSIX job-control signals; hibernation still transitions the
// bookkeeping state, it just can't freeze the underlying OS process.
func suspendProcess(pid int) error { return nil }

func resumeProcess(pid int) error { return nil }
