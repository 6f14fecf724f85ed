package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/scout/pkg/daemon/broadcaster"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// Scanner is the part of the daemon service the TUI drives.
type Scanner interface {
	Root() string
	Subscribe(kinds ...broadcaster.Kind) *broadcaster.Subscriber
	Unsubscribe(id string)
	Scan(ctx context.Context) (*types.ScanStats, error)
}

// Model is the Bubble Tea model for an interactive scan.
type Model struct {
	scanModel ScanModel
	scanner   Scanner
	sub       *broadcaster.Subscriber

	ctx    context.Context
	cancel context.CancelFunc

	result *types.ScanStats
	err    error
}

// NewModel subscribes to progress events of s. The scan starts in Init.
func NewModel(ctx context.Context, s Scanner) Model {
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		scanModel: NewScanModel(s.Root()),
		scanner:   s,
		sub:       s.Subscribe(broadcaster.KindScanProgress, broadcaster.KindPerformance),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init starts the scan and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.scanModel.Init(),
		m.startScan(),
		m.listenForEvents(),
		m.tickUI(),
	)
}

// tickUIMsg triggers a UI refresh.
type tickUIMsg struct{}

// tickUI returns a command that periodically triggers UI updates.
func (m Model) tickUI() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return tickUIMsg{}
	})
}

func (m Model) startScan() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.scanner.Scan(m.ctx)
		return ScanCompleteMsg{Stats: stats, Err: err}
	}
}

// listenForEvents converts the next broadcaster envelope into a message.
// A closed subscription yields nil and ends the loop.
func (m Model) listenForEvents() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		env, ok := <-sub.Events
		if !ok {
			return nil
		}
		return eventMsg(env.Event)
	}
}

func eventMsg(ev broadcaster.Event) tea.Msg {
	switch ev := ev.(type) {
	case broadcaster.ScanProgress:
		msg := ProgressMsg{Stats: ev.Stats}
		if n := len(ev.Batch); n > 0 {
			msg.CurrentPath = ev.Batch[n-1].RelativePath
		}
		return msg
	case broadcaster.PerformanceEvent:
		return PerfMsg(ev.Event)
	}
	return tickUIMsg{}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.scanModel.IsDone() {
				return m, tea.Quit
			}
			m.cancel()
			m.scanModel.SetStopping()
			return m, nil
		}
		return m, nil

	case ProgressMsg, PerfMsg:
		var cmd tea.Cmd
		m.scanModel, cmd = m.scanModel.Update(msg)
		return m, tea.Batch(cmd, m.listenForEvents())

	case ScanCompleteMsg:
		m.result = msg.Stats
		m.err = msg.Err
		m.scanModel, _ = m.scanModel.Update(msg)
		m.scanner.Unsubscribe(m.sub.ID)
		m.cancel()
		return m, tea.Quit

	case tickUIMsg:
		if m.scanModel.IsDone() {
			return m, nil
		}
		return m, m.tickUI()
	}

	var cmd tea.Cmd
	m.scanModel, cmd = m.scanModel.Update(msg)
	return m, cmd
}

// View renders the model.
func (m Model) View() string {
	return m.scanModel.View()
}

// Result returns the final scan statistics and error.
func (m Model) Result() (*types.ScanStats, error) {
	return m.result, m.err
}

// Run scans interactively and returns the final statistics.
func Run(ctx context.Context, s Scanner) (*types.ScanStats, error) {
	p := tea.NewProgram(NewModel(ctx, s), tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(Model).Result()
}
