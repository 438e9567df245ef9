package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	pbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"newsletterctl/internal/controller"
	"newsletterctl/internal/model"
	"newsletterctl/internal/progress"
)

var (
	surfaceTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	surfaceMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	surfaceErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	surfaceOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	surfaceWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	surfacePanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	surfaceHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true).Padding(0, 1)
)

type storeChangeMsg progress.Change

type streamEndedMsg struct {
	err error
}

type cancelResultMsg struct {
	err error
}

type surfaceModel struct {
	ctrl    *controller.Controller
	store   *progress.Store
	id      string
	changes <-chan progress.Change
	handle  controller.StreamHandle
	timeout time.Duration

	entry     *model.GenerationProgress
	barWidth  int
	width     int
	notice    string
	streamErr error

	cancelRequested bool
	dismissed       bool
}

func (m surfaceModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForChange(m.changes)}
	if m.handle != nil {
		cmds = append(cmds, waitForStreamEnd(m.handle))
	}
	return tea.Batch(cmds...)
}

func waitForChange(changes <-chan progress.Change) tea.Cmd {
	return func() tea.Msg {
		return storeChangeMsg(<-changes)
	}
}

func waitForStreamEnd(handle controller.StreamHandle) tea.Cmd {
	return func() tea.Msg {
		<-handle.Done()
		return streamEndedMsg{err: handle.Err()}
	}
}

func (m surfaceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		barWidth := msg.Width - 10
		if barWidth < 10 {
			barWidth = 10
		}
		if barWidth > 60 {
			barWidth = 60
		}
		m.barWidth = barWidth
		return m, nil

	case storeChangeMsg:
		if msg.ID == m.id {
			m.entry = msg.Entry
		}
		return m, waitForChange(m.changes)

	case streamEndedMsg:
		m.streamErr = msg.err
		// a change notification may have been dropped while the channel was
		// full; the store is authoritative for the final state
		if entry, ok := m.store.Get(m.id); ok {
			m.entry = entry
		}
		return m, nil

	case cancelResultMsg:
		m.cancelRequested = false
		if msg.err != nil {
			m.notice = "cancel failed: " + msg.err.Error()
		} else {
			m.notice = "cancellation requested; waiting for the backend to acknowledge"
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.entry != nil && m.entry.Terminal() {
				m.dismissed = true
			}
			return m, tea.Quit
		case "c":
			if m.entry == nil || m.entry.Terminal() || m.cancelRequested {
				return m, nil
			}
			m.cancelRequested = true
			m.notice = "cancelling..."
			ctrl, id, timeout := m.ctrl, m.id, m.timeout
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				return cancelResultMsg{err: ctrl.Cancel(ctx, id)}
			}
		}
	}
	return m, nil
}

func (m surfaceModel) View() string {
	var b strings.Builder
	b.WriteString(surfaceHeaderStyle.Render("newsletter generation") + " " + surfaceMutedStyle.Render(m.id) + "\n\n")

	entry := m.entry
	if entry == nil {
		b.WriteString(surfaceMutedStyle.Render("waiting for progress events...") + "\n")
		return surfacePanelStyle.Render(b.String())
	}

	bar := pbar.New(pbar.WithDefaultGradient(), pbar.WithWidth(m.barWidth))
	b.WriteString(bar.ViewAs(float64(entry.OverallProgress)/100) +
		surfaceMutedStyle.Render(fmt.Sprintf("  %d%%", entry.OverallProgress)) + "\n\n")

	if len(entry.Steps) == 0 && len(entry.PlannedSteps) > 0 {
		for _, planned := range entry.PlannedSteps {
			b.WriteString(surfaceMutedStyle.Render("  · "+stepLabel(planned.Step, planned.Message)) + "\n")
		}
	}
	for _, step := range entry.Steps {
		b.WriteString(renderStepLine(step) + "\n")
	}

	b.WriteString("\n" + renderDisposition(entry, m.streamErr) + "\n")
	if m.notice != "" {
		b.WriteString(surfaceWarnStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + surfaceMutedStyle.Render(keyHints(entry)))
	return surfacePanelStyle.Render(b.String())
}

func renderStepLine(step model.ProgressStep) string {
	label := stepLabel(step.Step, step.Message)
	switch step.Status {
	case model.StepSuccess:
		detail := ""
		if step.ItemsCount != nil {
			detail = fmt.Sprintf(" (%d items)", *step.ItemsCount)
		}
		if step.DurationMs != nil {
			detail += fmt.Sprintf(" %.1fs", float64(*step.DurationMs)/1000)
		}
		return surfaceOKStyle.Render("  ✓ ") + label + surfaceMutedStyle.Render(detail)
	case model.StepFailed:
		detail := step.Error
		if detail == "" {
			detail = "failed"
		}
		return surfaceErrorStyle.Render("  ✗ ") + label + " " + surfaceErrorStyle.Render(detail)
	case model.StepSkipped:
		return surfaceMutedStyle.Render("  ~ " + label + " (skipped)")
	case model.StepRunning:
		return surfaceTitleStyle.Render("  ▸ ") + label
	default:
		return surfaceMutedStyle.Render("  · " + label)
	}
}

func stepLabel(step, message string) string {
	if message != "" {
		return message
	}
	return step
}

func renderDisposition(entry *model.GenerationProgress, streamErr error) string {
	switch {
	case entry.IsCancelled:
		return surfaceWarnStyle.Render("cancelled")
	case entry.Failed():
		return surfaceErrorStyle.Render("failed: " + entry.ErrorMessage)
	case entry.IsComplete && entry.GhostPostURL != "":
		return surfaceOKStyle.Render("published: ") + entry.GhostPostURL
	case entry.IsComplete:
		return surfaceOKStyle.Render("complete")
	case streamErr != nil:
		return surfaceWarnStyle.Render("stream lost; the generation may still be running")
	default:
		return surfaceTitleStyle.Render("running")
	}
}

func keyHints(entry *model.GenerationProgress) string {
	if entry.Terminal() {
		return "q dismiss"
	}
	return "c cancel  ·  q stop watching (generation keeps running)"
}

// runWatchSurface renders the interactive progress panel for id until the
// user dismisses it. Dismissing a terminal entry clears it from the store.
func runWatchSurface(ctx context.Context, a *app, id string) (*model.GenerationProgress, error) {
	changes := make(chan progress.Change, 256)
	unsubscribe := a.store.Subscribe(func(change progress.Change) {
		if change.ID != id {
			return
		}
		select {
		case changes <- change:
		default:
		}
	})
	defer unsubscribe()

	m := surfaceModel{
		ctrl:     a.ctrl,
		store:    a.store,
		id:       id,
		changes:  changes,
		barWidth: 40,
		timeout:  a.settings.Timeout(),
	}
	if handle, ok := a.ctrl.Handle(id); ok {
		m.handle = handle
	}
	if entry, ok := a.store.Get(id); ok {
		m.entry = entry
	}

	prog := tea.NewProgram(m, tea.WithContext(ctx))
	finalModel, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			// interrupted; fall through with the last known snapshot
			entry, _ := a.store.Get(id)
			return entry, nil
		}
		return nil, err
	}

	final, ok := finalModel.(surfaceModel)
	if !ok {
		entry, _ := a.store.Get(id)
		return entry, nil
	}
	if final.dismissed && final.entry != nil && final.entry.Terminal() {
		a.ctrl.Clear(id)
	}
	return final.entry, nil
}
