package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned when another watcher owns the PID file.
var ErrAlreadyRunning = errors.New("scout watcher already running")

// WritePIDFile writes the current process ID to a file.
func WritePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	pid := os.Getpid()
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// ReadPIDFile reads a PID from a file.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}

	return pid, nil
}

// RemovePIDFile removes the PID file.
func RemovePIDFile(path string) error {
	return os.Remove(path)
}

// IsRunning checks if the process named by the PID file is alive.
func IsRunning(pidPath string) bool {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return false
	}
	return IsProcessRunning(pid)
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 only checks for existence.
	return process.Signal(syscall.Signal(0)) == nil
}

// AcquirePIDFile claims pidPath for this process after clearing stale
// artifacts left by a dead watcher. storePath is the store location whose
// lock file is cleared with it; it may be empty. The returned func
// releases the claim.
func AcquirePIDFile(pidPath, storePath string) (func(), error) {
	if err := RecoverStale(pidPath, storePath); err != nil {
		return nil, err
	}
	if err := WritePIDFile(pidPath); err != nil {
		return nil, fmt.Errorf("writing pid file: %w", err)
	}
	return func() { _ = RemovePIDFile(pidPath) }, nil
}
