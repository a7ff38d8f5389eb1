// Package tui is the interactive trace browser: a run list with each
// run's steps and sub-agents, code and output panes for the active step,
// and overlays for reasoning and the final result.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kehao95/rlmtrace/internal/nav"
	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/trace"
)

// eventsMsg carries a batch read from a followed log.
type eventsMsg tape.Batch

// followClosedMsg reports that the update channel was closed.
type followClosedMsg struct{}

// Model is the bubbletea model of the browser.
type Model struct {
	store  *trace.Store
	forest *trace.Forest
	state  nav.State

	updates   <-chan tape.Batch
	following bool
	source    string

	keys  keyMap
	help  help.Model
	theme theme

	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithUpdates ingests every batch received on ch while the browser runs.
func WithUpdates(ch <-chan tape.Batch) Option {
	return func(m *Model) {
		m.updates = ch
		m.following = ch != nil
	}
}

// WithSource names the log being browsed in the info panel.
func WithSource(name string) Option {
	return func(m *Model) { m.source = name }
}

// New returns a browser over store, starting on the first root.
func New(store *trace.Store, opts ...Option) Model {
	m := Model{
		store: store,
		keys:  defaultKeyMap(),
		help:  help.New(),
		theme: newTheme(),
	}
	for _, o := range opts {
		o(&m)
	}
	m.forest = store.Snapshot()
	m.state = nav.NewState(m.forest)
	return m
}

// State returns the current navigation state.
func (m Model) State() nav.State { return m.state }

// Forest returns the forest the model is showing.
func (m Model) Forest() *trace.Forest { return m.forest }

func (m Model) Init() tea.Cmd {
	return waitEvents(m.updates)
}

func waitEvents(ch <-chan tape.Batch) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		b, ok := <-ch
		if !ok {
			return followClosedMsg{}
		}
		return eventsMsg(b)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	case eventsMsg:
		m.store.IngestAll(msg.Events)
		m.store.NoteSkipped(msg.Skipped)
		m.forest = m.store.Snapshot()
		if _, ok := m.forest.Find(m.state.ActiveRun); !ok {
			m.state = nav.NewState(m.forest)
		}
		return m, waitEvents(m.updates)
	case followClosedMsg:
		m.updates = nil
		m.following = false
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Help) {
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		cmd, ok := m.keys.command(msg)
		if !ok {
			return m, nil
		}
		next, quit := nav.Apply(m.forest, m.state, cmd)
		m.state = next
		if quit {
			return m, tea.Quit
		}
	}
	return m, nil
}

// Run shows m full screen until the user quits.
func Run(m Model, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	_, err := p.Run()
	return err
}
