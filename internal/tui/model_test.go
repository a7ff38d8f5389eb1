package tui

import (
	"encoding/json"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kehao95/rlmtrace/internal/nav"
	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/trace"
	"github.com/kehao95/rlmtrace/internal/usage"
)

func intp(n int) *int { return &n }

// sampleEvents is a root run whose first code step spawns one sub-agent.
func sampleEvents() []tape.LogEvent {
	t0 := time.UnixMilli(1_700_000_000_000)
	at := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }
	return []tape.LogEvent{
		{Time: at(0), RunID: "run-root01", EventType: tape.EventRunStart, Step: intp(0), Query: "q"},
		{Time: at(10), RunID: "run-root01", EventType: tape.EventCodeGenerated, Step: intp(1), Code: "spawn()",
			Usage: &usage.Usage{TotalTokens: 1200, PromptTokens: 1000, CompletionTokens: 200, Cost: usage.Float(0.01)}},
		{Time: at(20), RunID: "run-child1", ParentRunID: "run-root01", Depth: 1, EventType: tape.EventRunStart, Step: intp(0)},
		{Time: at(30), RunID: "run-child1", ParentRunID: "run-root01", Depth: 1, EventType: tape.EventCodeGenerated, Step: intp(1),
			Code: "answer()", Reasoning: "because"},
		{Time: at(40), RunID: "run-child1", ParentRunID: "run-root01", Depth: 1, EventType: tape.EventExecutionResult, Step: intp(1), Output: "sub"},
		{Time: at(50), RunID: "run-child1", ParentRunID: "run-root01", Depth: 1, EventType: tape.EventFinalResult, Result: json.RawMessage(`"sub"`)},
		{Time: at(60), RunID: "run-root01", EventType: tape.EventExecutionResult, Step: intp(1), Output: "got sub"},
		{Time: at(70), RunID: "run-root01", EventType: tape.EventFinalResult, Result: json.RawMessage(`"done"`)},
	}
}

func newModel(t *testing.T) Model {
	t.Helper()
	s := trace.NewStore()
	s.IngestAll(sampleEvents())
	m, _ := send(New(s), tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keys(m Model, msgs ...tea.KeyMsg) Model {
	for _, k := range msgs {
		m, _ = send(m, k)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	down  = tea.KeyMsg{Type: tea.KeyDown}
	up    = tea.KeyMsg{Type: tea.KeyUp}
	right = tea.KeyMsg{Type: tea.KeyRight}
	left  = tea.KeyMsg{Type: tea.KeyLeft}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestKeysDriveNavigation(t *testing.T) {
	m := newModel(t)
	assert.Equal(t, "run-root01", m.State().ActiveRun)

	m = keys(m, down)
	assert.Equal(t, 1, m.State().ActiveStep)

	m = keys(m, right)
	assert.Equal(t, "run-child1", m.State().ActiveRun)
	assert.Equal(t, 0, m.State().ActiveStep)

	m = keys(m, left)
	assert.Equal(t, "run-root01", m.State().ActiveRun)
	assert.Equal(t, 1, m.State().ActiveStep, "parent step should be the one that spawned the child")

	m = keys(m, up, up)
	assert.Equal(t, 0, m.State().ActiveStep)
}

func TestScrollKeys(t *testing.T) {
	m := keys(newModel(t), runes("j"), runes("j"), runes("l"))
	assert.Equal(t, 2*nav.ScrollStep, m.State().CodeScroll)
	assert.Equal(t, nav.ScrollStep, m.State().OutputScroll)

	m = keys(m, runes("k"), runes("k"))
	assert.Equal(t, 0, m.State().OutputScroll)
}

func TestReasoningModal(t *testing.T) {
	m := keys(newModel(t), down, right, down, runes("r"))
	require.Equal(t, nav.ModalReasoning, m.State().Modal)
	assert.Contains(t, m.View(), "because")
	assert.Contains(t, m.View(), "Reasoning")

	m = keys(m, down)
	assert.Equal(t, 1, m.State().ActiveStep, "arrows scroll the modal, not the steps")
	assert.Equal(t, nav.ScrollStep, m.State().ModalScroll)

	m = keys(m, esc)
	assert.Equal(t, nav.ModalNone, m.State().Modal)

	m = keys(m, up, runes("r"))
	assert.Contains(t, m.View(), "(no reasoning trace)")
}

func TestFinalOutputModal(t *testing.T) {
	m := keys(newModel(t), runes("o"))
	require.Equal(t, nav.ModalFinalOutput, m.State().Modal)
	assert.Contains(t, m.View(), "done")

	m = keys(m, runes("o"))
	assert.Equal(t, nav.ModalNone, m.State().Modal)
}

func TestQuitClosesModalFirst(t *testing.T) {
	m := keys(newModel(t), runes("r"))

	m, cmd := send(m, runes("q"))
	assert.Nil(t, cmd)
	assert.Equal(t, nav.ModalNone, m.State().Modal)

	_, cmd = send(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestViewPanes(t *testing.T) {
	m := newModel(t)
	out := m.View()
	for _, want := range []string{"Runs", "▸ root01 (d0)", "[●] Step 0 start", "Result: done", "Total: 1.2k tok", "$0.0100", "Code [h/j]", "Output [k/l]"} {
		assert.Contains(t, out, want)
	}

	last := keys(m, down, down)
	out = last.View()
	assert.Contains(t, out, nav.FinalResultBanner)
	assert.Contains(t, out, "got sub")
	assert.Contains(t, out, "● 1 subagent")
}

func TestViewBeforeResize(t *testing.T) {
	assert.Empty(t, New(trace.NewStore()).View())
}

func TestHelpToggle(t *testing.T) {
	m := keys(newModel(t), runes("?"))
	assert.True(t, m.help.ShowAll)
	m = keys(m, runes("?"))
	assert.False(t, m.help.ShowAll)
}

func TestFollowIngestsEvents(t *testing.T) {
	ch := make(chan tape.Batch, 1)
	m, _ := send(New(trace.NewStore(), WithUpdates(ch), WithSource("run.jsonl")), tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, m.View(), "waiting for events...")
	assert.Contains(t, m.View(), "● live")

	wait := m.Init()
	require.NotNil(t, wait)
	ch <- tape.Batch{Events: sampleEvents(), Skipped: 1}

	m, next := send(m, wait())
	assert.Equal(t, "run-root01", m.State().ActiveRun)
	assert.Equal(t, 2, m.Forest().Len())
	assert.Equal(t, 1, m.Forest().Diagnostics().Skipped)
	require.NotNil(t, next, "model should keep listening")

	m = keys(m, down)
	ch <- tape.Batch{Events: []tape.LogEvent{{Time: time.UnixMilli(1_700_000_000_080), RunID: "run-late01", EventType: tape.EventRunStart, Step: intp(0)}}}
	m, next = send(m, next())
	assert.Equal(t, 3, m.Forest().Len())
	assert.Equal(t, "run-root01", m.State().ActiveRun, "new events keep the position")
	assert.Equal(t, 1, m.State().ActiveStep)

	close(ch)
	m, next = send(m, next())
	assert.Nil(t, next)
	assert.False(t, m.following)
	assert.NotContains(t, m.View(), "● live")
}

func TestUnknownKeyIgnored(t *testing.T) {
	m := newModel(t)
	before := m.State()
	m, cmd := send(m, runes("x"))
	assert.Nil(t, cmd)
	assert.Equal(t, before, m.State())
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "abcdef", shortID("run-abcdef-1234"))
	assert.Equal(t, "plain", shortID("plain"))
	assert.Equal(t, "999", formatTokens(999))
	assert.Equal(t, "1.5k", formatTokens(1500))
	assert.Equal(t, "n/a", formatCost(usage.Usage{}))
	assert.Equal(t, "$0.1235", formatCost(usage.Usage{Cost: usage.Float(0.12345)}))
	assert.Equal(t, "hel…", truncate("hello", 4))

	lines, ind := scrolled([]string{"a", "b", "c", "d", "e"}, 2, 3)
	assert.Equal(t, []string{"c", "d"}, lines)
	assert.Equal(t, " ↕ 3-4/5", ind)

	lines, ind = scrolled([]string{"a"}, 0, 3)
	assert.Equal(t, []string{"a"}, lines)
	assert.Empty(t, ind)
}
