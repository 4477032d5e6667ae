package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var ErrLocked = errors.New("lock held by another process")

// Releaser releases a file lock.
type Releaser interface {
	Release() error
}

// Flock locks fileName exclusively and records the pid of this process in
// it. Release removes the file, so existed reports a file left behind by a
// process that did not shut down cleanly, or one that still runs.
func Flock(fileName string) (r Releaser, existed bool, err error) {
	if err = os.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
		return nil, false, err
	}
	if _, err = os.Stat(fileName); err == nil {
		existed = true
	}

	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, existed, err
	}
	l, err := newLock(f)
	if err != nil {
		f.Close()
		return nil, existed, fmt.Errorf("%w: %s: %w", ErrLocked, fileName, err)
	}
	if err := writePid(f); err != nil {
		l.Release()
		return nil, existed, err
	}
	return l, existed, nil
}

func writePid(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	return err
}
