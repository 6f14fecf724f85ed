package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/scout/pkg/scout/perf"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// ScanModel renders a running scan.
type ScanModel struct {
	stats       types.ScanStats
	spinner     spinner.Model
	currentPath string
	perfNote    string
	startTime   time.Time
	width       int
	height      int
	rootPath    string
	stopping    bool
	done        bool
	err         error
}

// ProgressMsg is sent after each indexed batch.
type ProgressMsg struct {
	Stats       types.ScanStats
	CurrentPath string
}

// PerfMsg carries an admission controller event.
type PerfMsg perf.Event

// ScanCompleteMsg is sent when the scan returns.
type ScanCompleteMsg struct {
	Stats *types.ScanStats
	Err   error
}

// NewScanModel creates a new scanning model.
func NewScanModel(rootPath string) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return ScanModel{
		spinner:   s,
		startTime: time.Now(),
		width:     80,
		height:    24,
		rootPath:  rootPath,
	}
}

// Init initializes the scanning model.
func (m ScanModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the scanning model.
func (m ScanModel) Update(msg tea.Msg) (ScanModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ProgressMsg:
		m.SetProgress(msg.Stats, msg.CurrentPath)
		return m, nil

	case PerfMsg:
		m.perfNote = fmt.Sprintf("%s: %s", msg.Kind, msg.Reason)
		return m, nil

	case ScanCompleteMsg:
		if msg.Stats != nil {
			m.stats = *msg.Stats
		}
		m.SetDone(msg.Err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the scanning model.
func (m ScanModel) View() string {
	var b strings.Builder

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	b.WriteString("\n")
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	case m.done && m.stats.Stopped:
		b.WriteString(warningTextStyle.Render("  Scan stopped"))
	case m.done && m.stats.Truncated:
		b.WriteString(warningTextStyle.Render("  Scan stopped at the file limit"))
	case m.done:
		b.WriteString(successTextStyle.Render("  Scan complete!"))
	case m.stopping:
		b.WriteString(fmt.Sprintf("  %s Stopping...", m.spinner.View()))
	default:
		b.WriteString(fmt.Sprintf("  %s Indexing: %s",
			m.spinner.View(),
			pathStyle.Render(truncatePath(m.currentPath, contentWidth-20))))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderProgressBar(contentWidth))
	b.WriteString("\n\n")
	b.WriteString(m.renderStats(contentWidth))
	b.WriteString("\n")

	if m.perfNote != "" {
		b.WriteString(warningTextStyle.Render("  " + m.perfNote))
		b.WriteString("\n")
	}

	content := b.String()
	contentLines := strings.Count(content, "\n") + 1

	availableLines := m.height - 2
	if availableLines > contentLines {
		content += strings.Repeat("\n", availableLines-contentLines)
	}

	return outerBoxStyle.Width(m.width - 2).Height(m.height - 2).Render(content)
}

func (m ScanModel) renderHeader(width int) string {
	title := titleStyle.Render("  scout") + mutedTextStyle.Render("  "+m.rootPath)
	hint := mutedTextStyle.Render("[q to stop]")

	spacing := width - lipgloss.Width(title) - lipgloss.Width(hint)
	if spacing < 1 {
		spacing = 1
	}

	return title + strings.Repeat(" ", spacing) + hint
}

// renderProgressBar draws an indeterminate pulse; the total is unknown
// until discovery finishes.
func (m ScanModel) renderProgressBar(width int) string {
	barWidth := width - 4
	if barWidth < 10 {
		barWidth = 10
	}

	var bar strings.Builder
	bar.WriteString("  ")

	if m.done {
		for range barWidth {
			bar.WriteString(progressFillStyle.Render("█"))
		}
		return bar.String()
	}

	elapsed := time.Since(m.startTime)
	position := int(elapsed.Seconds()*2) % (barWidth * 2)
	if position > barWidth {
		position = barWidth*2 - position
	}

	pulseWidth := barWidth / 5
	if pulseWidth < 3 {
		pulseWidth = 3
	}

	for i := range barWidth {
		dist := i - position
		if dist < 0 {
			dist = -dist
		}
		if dist < pulseWidth {
			bar.WriteString(progressFillStyle.Render("█"))
		} else {
			bar.WriteString(progressEmptyStyle.Render("░"))
		}
	}

	return bar.String()
}

func (m ScanModel) renderStats(totalWidth int) string {
	boxWidth := (totalWidth - 12) / 5
	if boxWidth < 10 {
		boxWidth = 10
	}

	elapsed := m.stats.Elapsed
	if !m.done || elapsed == 0 {
		elapsed = time.Since(m.startTime)
	}

	boxes := []string{
		m.renderStatBox("Dirs", humanize.Comma(m.stats.DirectoriesScanned), boxWidth),
		m.renderStatBox("Indexed", humanize.Comma(m.stats.FilesProcessed), boxWidth),
		m.renderStatBox("Skipped", humanize.Comma(m.stats.FilesSkipped), boxWidth),
		m.renderStatBox("Data", humanize.IBytes(uint64(m.stats.BytesProcessed)), boxWidth),
		m.renderStatBox("Time", formatDuration(elapsed), boxWidth),
	}

	parts := []string{"  "}
	for i, box := range boxes {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, box)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m ScanModel) renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		center(statsLabelStyle.Render(label), width-4),
		center(statsValueStyle.Render(value), width-4))

	return statsBoxStyle.Width(width).Render(content)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// SetProgress updates the counters.
func (m *ScanModel) SetProgress(stats types.ScanStats, currentPath string) {
	m.stats = stats
	if currentPath != "" {
		m.currentPath = currentPath
	}
}

// SetStopping marks that a stop was requested.
func (m *ScanModel) SetStopping() {
	m.stopping = true
}

// SetDone marks the scan as complete.
func (m *ScanModel) SetDone(err error) {
	m.done = true
	m.err = err
}

// IsDone returns true if the scan is complete.
func (m ScanModel) IsDone() bool {
	return m.done
}

// Error returns any error from the scan.
func (m ScanModel) Error() error {
	return m.err
}

// Stats returns the latest counters.
func (m ScanModel) Stats() types.ScanStats {
	return m.stats
}
