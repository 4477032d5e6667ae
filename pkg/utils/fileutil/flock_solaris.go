//go:build solaris

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
	flock := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Start:  0,
		Len:    0,
		Whence: 1,
	}
	if lock {
		flock.Type = unix.F_WRLCK
	}
	return unix.FcntlFlock(l.f.Fd(), unix.F_SETLK, &flock)
}

func newLock(f *os.File) (Releaser, error) {
	l := &unixLock{f}
	return l, l.set(true)
}
