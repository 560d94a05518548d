//go:build windows

package scheduler

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// FileLock guards the bot's data directory on Windows, where flock is not
// available. The lock is the existence of the file itself, created with
// O_EXCL and holding the owner's pid.
type FileLock struct {
	path   string
	locked bool
}

// NewFileLock creates a FileLock for the given path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path.
func (l *FileLock) Path() string { return l.path }

// TryLock creates the lock file. It reports false when the file already
// exists. A file left behind by a crashed process must be removed by hand.
func (l *FileLock) TryLock() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	if err := errors.Join(werr, f.Close()); err != nil {
		os.Remove(l.path)
		return false, err
	}
	l.locked = true
	return true, nil
}

// Unlock removes the lock file if this FileLock created it.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Holder returns the pid recorded in the lock file.
func (l *FileLock) Holder() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
