// Package lockfile guards the state directory against concurrent bot
// processes. The cursor and settings store must only ever have one writer.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Name is the lock file created inside the state directory.
const Name = "magiceye.lock"

// Lock is a held exclusive lock on a state directory. The underlying flock
// is released by Release or automatically when the process exits.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive, non-blocking flock on the state directory's
// lock file, creating the directory if needed. When another process holds
// the lock, the returned error names its pid where known.
func Acquire(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	path := filepath.Join(stateDir, Name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holder := holderPID(file)
		file.Close()
		slog.Error("State directory already locked", "lock_path", path, "holder_pid", holder)
		return nil, fmt.Errorf("state directory %s is in use by another magic-eye process (pid %s): %w", stateDir, holder, err)
	}

	// Record our pid for operators inspecting the state directory.
	if err := file.Truncate(0); err == nil {
		file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
		file.Sync()
	}

	slog.Debug("State directory locked", "lock_path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

// Release drops the flock and removes the lock file. Safe to call more
// than once.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	slog.Debug("State directory lock released", "lock_path", l.path)
	return nil
}

// holderPID reads the pid recorded by the process holding the lock.
func holderPID(file *os.File) string {
	data := make([]byte, 32)
	n, err := file.ReadAt(data, 0)
	if n == 0 && err != nil {
		return "unknown"
	}
	pid := strings.TrimSpace(string(data[:n]))
	if _, err := strconv.Atoi(pid); err != nil {
		return "unknown"
	}
	return pid
}
