package fileutil

import (
	"os"

	"golang.org/x/sys/windows"
)

type windowsLock struct {
	f *os.File
}

var _ Releaser = (*windowsLock)(nil)

func (l *windowsLock) Release() error {
	if err := windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, 1, 0, &windows.Overlapped{}); err != nil {
		return err
	}
	if err := l.f.Close(); err != nil {
		return err
	}
	// an open file cannot be removed on windows
	if err := os.Remove(l.f.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *windowsLock) lock() error {
	return windows.LockFileEx(windows.Handle(l.f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, &windows.Overlapped{})
}

func newLock(f *os.File) (Releaser, error) {
	l := &windowsLock{f}
	return l, l.lock()
}
