package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/scout/pkg/daemon/broadcaster"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

type fakeScanner struct {
	b     *broadcaster.Broadcaster
	stats *types.ScanStats
	err   error
	ctx   context.Context
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{b: broadcaster.New(), stats: &types.ScanStats{FilesProcessed: 3}}
}

func (f *fakeScanner) Root() string { return "/project" }

func (f *fakeScanner) Subscribe(kinds ...broadcaster.Kind) *broadcaster.Subscriber {
	return f.b.Subscribe("/project", kinds...)
}

func (f *fakeScanner) Unsubscribe(id string) { f.b.Unsubscribe(id) }

func (f *fakeScanner) Scan(ctx context.Context) (*types.ScanStats, error) {
	f.ctx = ctx
	f.b.Publish(broadcaster.ScanProgress{
		Root:  "/project",
		Batch: []types.FileRecord{{RelativePath: "a.go"}, {RelativePath: "b.go"}},
		Stats: types.ScanStats{FilesProcessed: 2},
	})
	return f.stats, f.err
}

func TestModelScanFlow(t *testing.T) {
	fs := newFakeScanner()
	m := NewModel(context.Background(), fs)

	done := m.startScan()()
	if _, ok := done.(ScanCompleteMsg); !ok {
		t.Fatalf("expected ScanCompleteMsg, got %T", done)
	}

	progress := m.listenForEvents()()
	pm, ok := progress.(ProgressMsg)
	if !ok {
		t.Fatalf("expected ProgressMsg, got %T", progress)
	}
	if pm.CurrentPath != "b.go" {
		t.Errorf("expected current path b.go, got %s", pm.CurrentPath)
	}

	next, cmd := m.Update(pm)
	if cmd == nil {
		t.Error("expected progress to re-arm the listener")
	}
	m = next.(Model)
	if m.scanModel.Stats().FilesProcessed != 2 {
		t.Errorf("expected 2 files, got %d", m.scanModel.Stats().FilesProcessed)
	}

	next, cmd = m.Update(done)
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected quit command after completion")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}

	stats, err := m.Result()
	if err != nil || stats.FilesProcessed != 3 {
		t.Errorf("unexpected result: %+v, %v", stats, err)
	}
	if fs.b.SubscriberCount() != 0 {
		t.Error("expected subscription to be released")
	}
}

func TestModelStopCancelsScan(t *testing.T) {
	fs := newFakeScanner()
	m := NewModel(context.Background(), fs)
	_ = m.startScan()()

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)

	if fs.ctx.Err() == nil {
		t.Error("expected scan context to be cancelled")
	}
	if !m.scanModel.stopping {
		t.Error("expected stopping state")
	}
	if m.scanModel.IsDone() {
		t.Error("expected the model to wait for the scan to return")
	}
}
