package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kehao95/rlmtrace/internal/nav"
)

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Child       key.Binding
	Parent      key.Binding
	NextSibling key.Binding
	PrevSibling key.Binding
	CodeUp      key.Binding
	CodeDown    key.Binding
	OutputUp    key.Binding
	OutputDown  key.Binding
	Reasoning   key.Binding
	FinalOutput key.Binding
	Close       key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up"), key.WithHelp("↑↓", "steps")),
		Down:        key.NewBinding(key.WithKeys("down")),
		Child:       key.NewBinding(key.WithKeys("right"), key.WithHelp("←→", "parent/child")),
		Parent:      key.NewBinding(key.WithKeys("left")),
		NextSibling: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab/S-tab", "siblings")),
		PrevSibling: key.NewBinding(key.WithKeys("shift+tab")),
		CodeUp:      key.NewBinding(key.WithKeys("h", "H"), key.WithHelp("h/j", "code")),
		CodeDown:    key.NewBinding(key.WithKeys("j", "J")),
		OutputUp:    key.NewBinding(key.WithKeys("k", "K"), key.WithHelp("k/l", "output")),
		OutputDown:  key.NewBinding(key.WithKeys("l", "L")),
		Reasoning:   key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "reasoning")),
		FinalOutput: key.NewBinding(key.WithKeys("o", "O"), key.WithHelp("o", "final output")),
		Close:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q/^C", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Child, k.NextSibling, k.CodeUp, k.OutputUp, k.Reasoning, k.FinalOutput, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Child, k.NextSibling},
		{k.CodeUp, k.OutputUp},
		{k.Reasoning, k.FinalOutput, k.Close},
		{k.Quit, k.Help},
	}
}

// command maps a key press to a navigation command. Up and the code-up
// key double as modal scrolling; nav.Apply interprets them by state.
func (k keyMap) command(msg tea.KeyMsg) (nav.Command, bool) {
	for _, b := range []struct {
		binding key.Binding
		cmd     nav.Command
	}{
		{k.Up, nav.StepUp},
		{k.Down, nav.StepDown},
		{k.Child, nav.EnterChild},
		{k.Parent, nav.GoParent},
		{k.NextSibling, nav.NextSibling},
		{k.PrevSibling, nav.PrevSibling},
		{k.CodeUp, nav.ScrollCodeUp},
		{k.CodeDown, nav.ScrollCodeDown},
		{k.OutputUp, nav.ScrollOutputUp},
		{k.OutputDown, nav.ScrollOutputDown},
		{k.Reasoning, nav.ToggleReasoning},
		{k.FinalOutput, nav.ToggleFinalOutput},
		{k.Close, nav.CloseModal},
		{k.Quit, nav.Quit},
	} {
		if key.Matches(msg, b.binding) {
			return b.cmd, true
		}
	}
	return 0, false
}
