package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Status values.
const (
	StatusReady = "ready"
	StatusError = "error"
)

// StatusFile records the state of a running watcher for `scout status`.
type StatusFile struct {
	Status    string    `json:"status"`
	PID       int       `json:"pid,omitempty"`
	Root      string    `json:"root,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// WriteStatusReady writes a ready status file for root.
func WriteStatusReady(path, root string) error {
	status := StatusFile{
		Status:    StatusReady,
		PID:       os.Getpid(),
		Root:      root,
		StartedAt: time.Now().UTC(),
	}
	return writeStatus(path, &status)
}

// WriteStatusError writes an error status file.
func WriteStatusError(path string, err error) error {
	status := StatusFile{
		Status: StatusError,
		Error:  err.Error(),
	}
	return writeStatus(path, &status)
}

func writeStatus(path string, status *StatusFile) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadStatus reads a status file.
func ReadStatus(path string) (*StatusFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var status StatusFile
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RemoveStatus removes the status file.
func RemoveStatus(path string) error {
	return os.Remove(path)
}

// StatusPath returns the status file path for a state directory.
func StatusPath(stateDir string) string {
	return filepath.Join(stateDir, "scout.status")
}
