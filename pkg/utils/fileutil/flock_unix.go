//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package fileutil

import (
	"os"

	"golang.org/x/sys/unix"
)

type unixLock struct {
	f *os.File
}

var _ Releaser = (*unixLock)(nil)

// Release removes the lock file while still holding the lock, then unlocks.
func (l *unixLock) Release() error {
	if err := os.Remove(l.f.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := l.set(false); err != nil {
		return err
	}
	return l.f.Close()
}

func (l *unixLock) set(lock bool) error {
	how := unix.LOCK_UN
	if lock {
		how = unix.LOCK_EX
	}
	return unix.Flock(int(l.f.Fd()), how|unix.LOCK_NB)
}

func newLock(f *os.File) (Releaser, error) {
	l := &unixLock{f}
	return l, l.set(true)
}
