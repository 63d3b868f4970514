// Package ui is Grove's terminal front end: a Bubble Tea program over the
// Interactive Controller and core.Loop, grounded on the teacher's own
// internal/ui package shape (a single root Model, lipgloss-styled views,
// termenv-aware color fallback) though rebuilt around Grove's own
// workspace/session model rather than agent-deck's.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jordangarrison/grove/internal/capture"
	"github.com/jordangarrison/grove/internal/config"
	"github.com/jordangarrison/grove/internal/core"
	"github.com/jordangarrison/grove/internal/domain"
	"github.com/jordangarrison/grove/internal/interactive"
)

var (
	colorProfile = termenv.ColorProfile()

	sidebarStyle = lipgloss.NewStyle().Padding(0, 1).Width(28)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	flashStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// captureAppliedMsg and failureMsg adapt core.Loop's plain-Go callbacks
// into Bubble Tea messages, relayed through a buffered channel since the
// loop itself runs on its own goroutine independent of the Bubble Tea
// event loop.
type captureAppliedMsg struct {
	session string
	record  domain.CaptureRecord
	probe   capture.ProbeResult
}

type failureMsg struct{ f *core.Failure }

// WorkspacesUpdatedMsg carries a fresh reconcile result into the program,
// e.g. from a caller watching the project root with
// reconcile.MarkerWatcher and re-running Reconcile on each change.
type WorkspacesUpdatedMsg struct{ Workspaces []domain.Workspace }

// Model is the root Bubble Tea model: a workspace sidebar plus a preview
// viewport for whichever workspace is selected.
type Model struct {
	loop       *core.Loop
	cfg        *config.Config
	workspaces []domain.Workspace
	cursor     int

	preview    viewport.Model
	controller *interactive.Controller

	events chan tea.Msg

	lastFailure *core.Failure
	failedAt    time.Time

	width, height int
}

// NewModel wires a started core.Loop's callbacks into a fresh Model. The
// caller is responsible for calling loop.Run(ctx) in its own goroutine
// before starting the returned program, and must pass the same
// *interactive.Controller instance given to core.NewLoop so the Model's key
// forwarding and the Loop's own Escape-timeout polling share one state
// machine (spec §4.5 is a single three-state machine, not two). cfg
// resolves an orphaned workspace's launch command on re-entry (spec's
// Orphan recovery); a nil cfg falls back to config.Default().
func NewModel(loop *core.Loop, controller *interactive.Controller, workspaces []domain.Workspace, cfg *config.Config) *Model {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Model{
		loop:       loop,
		cfg:        cfg,
		controller: controller,
		workspaces: workspaces,
		preview:    viewport.New(80, 24),
		events:     make(chan tea.Msg, 64),
	}
	loop.OnCaptureApplied = func(session string, rec domain.CaptureRecord, probe capture.ProbeResult) {
		select {
		case m.events <- captureAppliedMsg{session: session, record: rec, probe: probe}:
		default:
		}
	}
	loop.OnFailure = func(f *core.Failure) {
		select {
		case m.events <- failureMsg{f: f}:
		default:
		}
	}
	return m
}

// SetInitialSize seeds the preview viewport's dimensions before the first
// tea.WindowSizeMsg arrives, from a term.GetSize call the caller made
// against the real controlling terminal.
func (m *Model) SetInitialSize(cols, rows int) {
	m.width, m.height = cols, rows
	m.preview.Width = cols - sidebarStyle.GetWidth() - 2
	m.preview.Height = rows - 2
}

func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m *Model) selected() *domain.Workspace {
	if m.cursor < 0 || m.cursor >= len(m.workspaces) {
		return nil
	}
	return &m.workspaces[m.cursor]
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.preview.Width = msg.Width - sidebarStyle.GetWidth() - 2
		m.preview.Height = msg.Height - 2
		return m, nil

	case captureAppliedMsg:
		if ws := m.selected(); ws != nil && ws.SessionName() == msg.session {
			m.preview.SetContent(msg.record.Render)
		}
		return m, m.waitForEvent()

	case failureMsg:
		m.lastFailure = msg.f
		m.failedAt = time.Now()
		return m, m.waitForEvent()

	case WorkspacesUpdatedMsg:
		m.workspaces = msg.Workspaces
		if m.cursor >= len(m.workspaces) {
			m.cursor = len(m.workspaces) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The sidebar owns Up/Down/q/Ctrl+Q when the Controller isn't attached
	// to a pane; once attached, every key (including Ctrl+C) forwards to
	// the agent instead, matching spec §4.5's "while interactive, only
	// Escape is interpreted locally" rule.
	if !m.controller.Active() {
		switch msg.Type {
		case tea.KeyCtrlQ:
			return m, tea.Quit
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case tea.KeyDown:
			if m.cursor < len(m.workspaces)-1 {
				m.cursor++
			}
			return m, nil
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m, m.enterSelected()
		}
		return m, nil
	}

	for _, key := range translateTeaKey(msg) {
		_ = m.loop.SendInput(context.Background(), func(ctx context.Context) error {
			_, err := m.controller.HandleKey(ctx, key, enterModifiersFor(msg))
			return err
		})
	}
	return m, nil
}

// enterSelected asks the core to attach the Interactive Controller to the
// selected workspace's pane, sized to the current preview viewport. When
// the workspace is orphaned (its multiplexer session is gone but its
// worktree and markers survive), the agent is re-launched first, per the
// operator's current agent-launch options, before the Controller attaches
// (spec's Orphan recovery).
func (m *Model) enterSelected() tea.Cmd {
	ws := m.selected()
	if ws == nil {
		return nil
	}
	session := ws.SessionName()
	cols, rows := m.preview.Width, m.preview.Height
	orphaned := ws.IsOrphaned
	kind := ws.AgentKind
	path := ws.Path
	historyLimit := m.cfg.DefaultHistoryLimit
	command := m.cfg.CommandFor(kind, kind.Marker())
	return func() tea.Msg {
		_ = m.loop.SendInput(context.Background(), func(ctx context.Context) error {
			if orphaned {
				if err := m.loop.RelaunchOrphan(ctx, session, path, command, historyLimit); err != nil {
					return err
				}
			}
			_, _, _, err := m.controller.Enter(ctx, session, session, cols, rows)
			return err
		})
		return nil
	}
}

func (m *Model) View() string {
	var sb strings.Builder
	for i, ws := range m.workspaces {
		line := fmt.Sprintf("%-18s %s", ws.Name, ws.Status.String())
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
	}

	sidebar := sidebarStyle.Render(sb.String())
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, m.preview.View())

	status := ""
	if m.lastFailure != nil && time.Since(m.failedAt) < core.FlashDuration {
		status = flashStyle.Render(m.lastFailure.Message)
	} else if colorProfile != termenv.Ascii {
		status = statusStyle.Render("grove — ↑/↓ select, q quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, status)
}
