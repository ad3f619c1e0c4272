// Package ui renders the live-tail view: a header with feed status and
// the stream of deduplicated calls as the poller delivers them.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/radiolurker/crier/internal/state"
)

// Options configure the UI runtime.
type Options struct {
	Store     *state.Store
	System    int
	Talkgroup int
	ThemeName string
}

const uiRefresh = time.Second

// Run starts the bubbletea program and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Store == nil {
		return fmt.Errorf("ui requires a state store")
	}
	program := tea.NewProgram(newModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return normalizeRunError(ctx, err)
}

// normalizeRunError swallows the kill error the program reports when an
// outside cancellation tears it down. That shutdown is orderly, not a
// UI failure. Matches wrapped errors as well.
func normalizeRunError(ctx context.Context, err error) error {
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type tickMsg time.Time

// Model is the bubbletea model for the live view.
type Model struct {
	store     *state.Store
	system    int
	talkgroup int
	theme     Theme
	styles    Styles
	spin      spinner.Model

	snapshot state.Snapshot
	width    int
	height   int
}

func newModel(opts Options) Model {
	theme := themeByName(opts.ThemeName)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		store:     opts.Store,
		system:    opts.System,
		talkgroup: opts.Talkgroup,
		theme:     theme,
		styles:    theme.Styles(),
		spin:      sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(uiRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.snapshot = m.store.Snapshot()
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCalls())
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("q quit"))
	return b.String()
}

func (m Model) renderHeader() string {
	parts := []string{
		m.styles.Logo.Render("crier"),
		m.styles.Muted.Render(fmt.Sprintf("tg %d/%d", m.system, m.talkgroup)),
	}
	switch {
	case m.snapshot.IsOffline():
		parts = append(parts, m.styles.Danger.Render("● OFFLINE"))
	case !m.snapshot.Initialized:
		parts = append(parts, m.styles.Accent.Render(m.spin.View()+" connecting"))
	default:
		parts = append(parts, m.styles.Success.Render("● LIVE"))
	}
	if m.snapshot.LastError != nil {
		parts = append(parts, m.styles.Danger.Render(truncate(m.snapshot.LastError.Error(), 48)))
	}
	if !m.snapshot.LastUpdated.IsZero() {
		parts = append(parts, m.styles.Muted.Render(m.snapshot.LastUpdated.Format("15:04:05")))
	}
	content := strings.Join(parts, "  ")
	if m.width > 0 {
		return m.styles.Header.Width(m.width).Render(content)
	}
	return m.styles.Header.Render(content)
}

func (m Model) renderCalls() string {
	rows := m.visibleRows()
	calls := m.snapshot.Calls
	if len(calls) == 0 {
		if m.snapshot.Initialized {
			return m.styles.Muted.Render("  no calls yet")
		}
		return m.styles.Muted.Render("  waiting for the first snapshot")
	}
	if len(calls) > rows {
		calls = calls[len(calls)-rows:]
	}

	var b strings.Builder
	for i, c := range calls {
		if i > 0 {
			b.WriteString("\n")
		}
		line := fmt.Sprintf("%s  %-7s  src %-8d  %s",
			formatClock(c.StartTime),
			formatDuration(c.Duration),
			c.SourceRadioID,
			truncate(c.TalkgroupName, 40))
		b.WriteString("  " + m.styles.Text.Render(line))
	}
	return b.String()
}

// visibleRows leaves room for the header and help line.
func (m Model) visibleRows() int {
	if m.height <= 3 {
		return 10
	}
	return m.height - 3
}
