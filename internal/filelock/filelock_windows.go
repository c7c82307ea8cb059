//go:build windows

package filelock

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

const (
	lockFlags = windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY

	retryInterval    = time.Millisecond
	maxRetryInterval = 50 * time.Millisecond
)

// lockFile polls LockFileEx with FAIL_IMMEDIATELY: a blocking call would
// pin the OS thread and can starve the scheduler.
func lockFile(f *os.File) error {
	wait := retryInterval
	for {
		err := windows.LockFileEx(windows.Handle(f.Fd()), lockFlags, 0, 1, 0, new(windows.Overlapped))
		if err == nil {
			return nil
		}
		if !errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return err
		}
		time.Sleep(wait)
		wait = min(wait*2, maxRetryInterval) //nolint:mnd // exponential backoff
	}
}

func unlockFile(f *os.File) error {
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, new(windows.Overlapped))
}
