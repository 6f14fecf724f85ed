package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/scout/pkg/daemon"
	"github.com/jamesainslie/scout/pkg/scout/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a watcher is running",
	Long:  `Report the state of the scout watch process from its PID and status files.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// watchStatus is the JSON shape of `scout status --json`.
type watchStatus struct {
	Running bool               `json:"running"`
	Status  *daemon.StatusFile `json:"status,omitempty"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	pidPath := config.DefaultPIDPath()
	st := readWatchStatus(pidPath, daemon.StatusPath(filepath.Dir(pidPath)))

	if getJSON() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	switch {
	case !st.Running:
		printInfo("Watcher status: not running")
	case st.Status == nil:
		printInfo("Watcher status: starting")
	default:
		printInfo("Watcher status: %s", st.Status.Status)
		printInfo("  PID:     %d", st.Status.PID)
		printInfo("  Root:    %s", st.Status.Root)
		if !st.Status.StartedAt.IsZero() {
			printInfo("  Started: %s", humanize.Time(st.Status.StartedAt))
		}
	}
	if st.Status != nil && st.Status.Error != "" {
		printInfo("  Error:   %s", st.Status.Error)
	}
	return nil
}

// readWatchStatus combines the liveness of the PID file with the last
// status the watcher wrote. An error status is reported even after the
// process exited.
func readWatchStatus(pidPath, statusPath string) watchStatus {
	st := watchStatus{Running: daemon.IsRunning(pidPath)}
	if sf, err := daemon.ReadStatus(statusPath); err == nil {
		if st.Running || sf.Status == daemon.StatusError {
			st.Status = sf
		}
	}
	return st
}
