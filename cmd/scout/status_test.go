package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jamesainslie/scout/pkg/daemon"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

func TestReadWatchStatus(t *testing.T) {
	tests := []struct {
		name        string
		pid         int
		setup       func(statusPath string) error
		wantRunning bool
		wantStatus  string
	}{
		{
			name:  "not running",
			setup: func(string) error { return nil },
		},
		{
			name:        "running and ready",
			pid:         os.Getpid(),
			setup:       func(p string) error { return daemon.WriteStatusReady(p, "/project") },
			wantRunning: true,
			wantStatus:  daemon.StatusReady,
		},
		{
			name:        "running without status",
			pid:         os.Getpid(),
			setup:       func(string) error { return nil },
			wantRunning: true,
		},
		{
			name:  "stale ready status is hidden",
			pid:   999999999,
			setup: func(p string) error { return daemon.WriteStatusReady(p, "/project") },
		},
		{
			name:       "error status survives exit",
			setup:      func(p string) error { return daemon.WriteStatusError(p, errors.New("index locked")) },
			wantStatus: daemon.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			pidPath := filepath.Join(dir, "scout.pid")
			statusPath := daemon.StatusPath(dir)
			if tt.pid != 0 {
				if err := os.WriteFile(pidPath, []byte(strconv.Itoa(tt.pid)), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if err := tt.setup(statusPath); err != nil {
				t.Fatal(err)
			}

			st := readWatchStatus(pidPath, statusPath)
			if st.Running != tt.wantRunning {
				t.Errorf("Running = %v, want %v", st.Running, tt.wantRunning)
			}
			got := ""
			if st.Status != nil {
				got = st.Status.Status
			}
			if got != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestChangePath(t *testing.T) {
	tests := []struct {
		name string
		res  types.ChangeResult
		want string
	}{
		{
			name: "created",
			res:  types.ChangeResult{Event: types.ChangeEvent{Kind: types.Created, Path: "/p/src/a.go"}},
			want: "src/a.go",
		},
		{
			name: "moved",
			res: types.ChangeResult{Event: types.ChangeEvent{
				Kind: types.Moved, Path: "/p/b.go", OldPath: "/p/a.go",
			}},
			want: "a.go -> b.go",
		},
		{
			name: "failed",
			res: types.ChangeResult{
				Event: types.ChangeEvent{Kind: types.Modified, Path: "/p/a.go"},
				Err:   "permission denied",
			},
			want: "a.go (permission denied)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := changePath("/p", tt.res); got != tt.want {
				t.Errorf("changePath() = %q, want %q", got, tt.want)
			}
		})
	}
}
