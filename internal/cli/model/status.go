// Package model holds the Bubble Tea models of the CLI.
package model

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/ealain/internal/cli/styles"
	"github.com/bnema/ealain/internal/domain/entity"
)

// Controller is the part of the engine the status screen can drive.
type Controller interface {
	Skip(ctx context.Context) error
	SetOrientation(ctx context.Context, o entity.Orientation) error
	// Status and Stopped are read on every spinner frame, so a dropped
	// status event only delays the screen.
	Status() string
	Stopped() bool
}

// eventMsg carries one engine event into Update.
type eventMsg struct {
	event entity.Event
}

// closedMsg is sent once the event channel is closed.
type closedMsg struct{}

// commandErrMsg reports a failed engine command.
type commandErrMsg struct {
	err error
}

// StatusModel shows what the engine is doing: the status line, the current
// image and the pool size.
type StatusModel struct {
	ctx     context.Context
	theme   *styles.Theme
	events  <-chan entity.Event
	control Controller
	spinner spinner.Model

	partition entity.Partition
	status    string
	showing   string
	pool      int
	swaps     int
	saved     int
	failures  float64
	stopped   bool
	lastErr   error
	startedAt time.Time
	now       func() time.Time
}

// NewStatusModel creates the status screen for a running engine.
func NewStatusModel(ctx context.Context, theme *styles.Theme, events <-chan entity.Event, control Controller, p entity.Partition) StatusModel {
	return StatusModel{
		ctx:       ctx,
		theme:     theme,
		events:    events,
		control:   control,
		spinner:   styles.NewDefaultSpinner(theme),
		partition: p,
		status:    "Starting...",
		startedAt: time.Now(),
		now:       time.Now,
	}
}

func waitForEvent(events <-chan entity.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg{event: event}
	}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.apply(msg.event)
		return m, waitForEvent(m.events)

	case closedMsg:
		return m, tea.Quit

	case commandErrMsg:
		m.lastErr = msg.err
		return m, nil

	case spinner.TickMsg:
		m.sync()
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m StatusModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "n", " ":
		return m, m.command(func(ctx context.Context) error { return m.control.Skip(ctx) })
	case "o":
		next := entity.OrientationPortrait
		if m.partition.Orientation == entity.OrientationPortrait {
			next = entity.OrientationLandscape
		}
		// The header follows the PartitionChanged event once the engine switched.
		return m, m.command(func(ctx context.Context) error { return m.control.SetOrientation(ctx, next) })
	}
	return m, nil
}

func (m StatusModel) command(fn func(ctx context.Context) error) tea.Cmd {
	if m.control == nil {
		return nil
	}
	return func() tea.Msg {
		if err := fn(m.ctx); err != nil {
			return commandErrMsg{err: err}
		}
		return nil
	}
}

func (m *StatusModel) sync() {
	if m.control == nil {
		return
	}
	if status := m.control.Status(); status != "" {
		m.status = status
	}
	m.stopped = m.stopped || m.control.Stopped()
}

func (m *StatusModel) apply(event entity.Event) {
	switch e := event.(type) {
	case entity.StatusChanged:
		m.status = e.Text
	case entity.ImageSwapped:
		m.showing = filepath.Base(e.Entry.Path)
		m.swaps++
	case entity.GenerationFailed:
		m.failures = e.Failures
		m.stopped = m.stopped || e.Stopped
		m.lastErr = e.Err
	case entity.JobFinished:
		m.saved += e.Saved
		if e.Saved > 0 {
			m.failures = 0
			m.lastErr = nil
		}
	case entity.PartitionChanged:
		m.partition = e.To
		m.pool = 0
	case entity.PoolChanged:
		if e.Partition == m.partition {
			m.pool = e.Count
		}
	}
}

// View implements tea.Model.
func (m StatusModel) View() string {
	t := m.theme

	indicator := m.spinner.View()
	statusStyle := t.Normal
	if m.stopped {
		indicator = styles.StoppedGlyph(t)
		statusStyle = t.ErrorStyle
	}

	showing := m.showing
	if showing == "" {
		showing = "-"
	}
	pool := "-"
	if m.pool > 0 {
		pool = fmt.Sprintf("%d", m.pool)
	}

	lines := []string{
		t.BoxHeader.Render("ealain " + t.Badge.Render(m.partition.String())),
		indicator + " " + statusStyle.Render(m.status),
		"",
		t.KeyValue("showing", showing),
		t.KeyValue("pool", pool),
		t.KeyValue("swaps", fmt.Sprintf("%d", m.swaps)),
		t.KeyValue("generated", fmt.Sprintf("%d", m.saved)),
		t.KeyValue("uptime", m.now().Sub(m.startedAt).Truncate(time.Second).String()),
	}
	if m.failures > 0 {
		lines = append(lines, t.KeyValue("failures", t.WarningStyle.Render(fmt.Sprintf("%.1f", m.failures))))
	}
	if m.lastErr != nil {
		lines = append(lines, "", t.ErrorStyle.Render(m.lastErr.Error()))
	}
	lines = append(lines, "", t.Help("n", "next image", "o", "orientation", "q", "quit"))

	return t.Box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Ensure interface compliance.
var _ tea.Model = (*StatusModel)(nil)
