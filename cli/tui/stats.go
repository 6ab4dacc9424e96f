package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hexquarry/battle/cli/statsview"
)

// StatsModel is a Bubble Tea model for the runtime stats view.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats":
		content = m.renderStats()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStats() string {
	data, ok := m.data.(statsview.StatsView)
	if !ok {
		return "Invalid data type for stats"
	}

	title := TitleStyle.Render("Runtime Statistics")

	boxes := []string{
		m.renderStatBox("Queued", int(data.JobsByState["pending"]), highlightColor),
		m.renderStatBox("Processing", int(data.JobsByState["processing"]), warningColor),
		m.renderStatBox("Completed", int(data.JobsByState["completed"]), successColor),
		m.renderStatBox("Failed", int(data.JobsByState["failed"]), errorColor),
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, boxes...)

	cacheLine := fmt.Sprintf("%s %s",
		LabelStyle.Render("Cache hit rate:"),
		ValueStyle.Render(strconv.FormatFloat(data.CacheHitRate*100, 'f', 1, 64)+"%"))
	usersLine := fmt.Sprintf("%s %s",
		LabelStyle.Render("Active users:"),
		ValueStyle.Render(strconv.FormatInt(data.ActiveUsers, 10)))
	durationLine := fmt.Sprintf("%s mean=%.0fms p95=%.0fms min=%.0fms max=%.0fms",
		LabelStyle.Render("Job duration:"),
		data.JobDuration.Mean, data.JobDuration.P95, data.JobDuration.Min, data.JobDuration.Max)
	waitLine := fmt.Sprintf("%s mean=%.0fms p95=%.0fms min=%.0fms max=%.0fms",
		LabelStyle.Render("Queue wait:"),
		data.QueueWait.Mean, data.QueueWait.P95, data.QueueWait.Min, data.QueueWait.Max)

	return lipgloss.JoinVertical(lipgloss.Left, title, row, "", cacheLine, usersLine, durationLine, waitLine)
}

func (m StatsModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
