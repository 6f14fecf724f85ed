package daemon

import (
	"os"
	"path/filepath"

	"github.com/jamesainslie/scout/pkg/scout/logging"
)

// RecoverStale checks for and cleans up artifacts of a watcher that died
// without releasing them. It returns nil if cleanup succeeded or wasn't
// needed, and ErrAlreadyRunning if the owning process is still alive.
func RecoverStale(pidPath, storePath string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		// A missing or unreadable PID file leaves nothing to recover.
		return nil //nolint:nilerr // missing/invalid PID file is not an error condition
	}

	if IsProcessRunning(pid) {
		return ErrAlreadyRunning
	}

	log := logging.Get("daemon")
	log.Warn("cleaning up stale watcher files", "stale_pid", pid)

	// Files may already be gone.
	_ = os.Remove(pidPath)
	if storePath != "" {
		_ = os.Remove(filepath.Join(storePath, "LOCK"))
	}
	_ = os.Remove(StatusPath(filepath.Dir(pidPath)))

	return nil
}
