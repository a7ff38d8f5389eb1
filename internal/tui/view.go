package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kehao95/rlmtrace/internal/nav"
	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/usage"
)

const (
	infoHeight  = 6
	minWidth    = 60
	minHeight   = 12
	maxModalW   = 100
	maxModalH   = 40
	leftPercent = 35
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	width := max(minWidth, m.width)
	helpView := m.help.View(m.keys)
	mainH := max(minHeight, m.height-lipgloss.Height(helpView))

	leftW := max(24, width*leftPercent/100)
	rightW := width - leftW
	// Border and title take three rows of the run list.
	v := nav.Render(m.forest, m.state, mainH-3)

	var main string
	if v.Modal != nav.ModalNone {
		main = m.renderModal(v, width, mainH)
	} else {
		paneH := mainH - infoHeight
		codeW := rightW / 2
		panes := lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderPane("Code [h/j]", v.Code, "(no code)", v.CodeScroll, codeW, paneH, m.theme.code),
			m.renderPane("Output [k/l]", v.Output, "(no output)", v.OutputScroll, rightW-codeW, paneH, m.theme.output),
		)
		right := lipgloss.JoinVertical(lipgloss.Left, m.renderInfo(v, rightW), panes)
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.renderRuns(v, leftW, mainH), right)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, helpView)
}

// ---------------------------------------------------------------------------
// Run list
// ---------------------------------------------------------------------------

func (m Model) renderRuns(v nav.View, width, height int) string {
	inner := width - 2
	lines := []string{m.theme.panelTitle.Render("Runs")}
	if len(v.Items) == 0 {
		empty := "(no runs)"
		if m.following {
			empty = "waiting for events..."
		}
		lines = append(lines, m.theme.placeholder.Render(empty))
	}
	for i, it := range v.Items {
		lines = append(lines, m.itemLine(it, i == v.Cursor, inner))
	}
	return m.box(strings.Join(lines, "\n"), inner, height)
}

func (m Model) itemLine(it nav.Item, cursor bool, width int) string {
	pad := strings.Repeat(" ", it.Indent)
	var label string
	var style lipgloss.Style

	switch it.Kind {
	case nav.ItemHeader:
		marker, st := "▹", m.theme.runIdle
		if it.Active {
			marker, st = "▸", m.theme.runActive
		}
		label, style = fmt.Sprintf("%s%s %s (d%d)", pad, marker, shortID(it.RunID), it.Depth), st
	case nav.ItemStep:
		icon, st := "[ ]", m.theme.stepIdle
		if it.HasError {
			st = m.theme.stepError
		}
		if it.Active {
			icon, st = "[●]", m.theme.stepActive
		}
		label, style = fmt.Sprintf("%s%s Step %d", pad, icon, it.Step), st
		if kind := m.stepKind(it); kind != "" {
			label += " " + kind
		}
	case nav.ItemCollapsed:
		plural := "s"
		if it.Count == 1 {
			plural = ""
		}
		label, style = fmt.Sprintf("%s  ● %d subagent%s", pad, it.Count, plural), m.theme.collapsed
	}

	if cursor {
		style = m.theme.cursor
	}
	return style.MaxWidth(width).Render(label)
}

func (m Model) stepKind(it nav.Item) string {
	n, ok := m.forest.Find(it.RunID)
	if !ok || it.Step >= len(n.Steps) {
		return ""
	}
	switch t := n.Steps[it.Step].EventType; t {
	case tape.EventRunStart:
		return "start"
	case tape.EventCodeGenerated:
		return "code"
	case tape.EventExecutionResult:
		return "exec"
	default:
		return string(t)
	}
}

// ---------------------------------------------------------------------------
// Info and panes
// ---------------------------------------------------------------------------

func (m Model) renderInfo(v nav.View, width int) string {
	inner := width - 2
	result := v.Result
	if result == "" {
		result = "N/A"
	}
	head := m.theme.label.Render("Result: ") + m.theme.result.Render(truncate(result, max(8, inner-14)))
	if v.HasError {
		head += m.theme.errorBadge.Render(" ERROR")
	}

	run := m.theme.label.Render("Run: ")
	if v.RunID != "" {
		run += m.theme.value.Render(fmt.Sprintf("%s d%d step %d/%d", shortID(v.RunID), v.Depth, v.Step, v.Steps))
	} else {
		run += m.theme.placeholder.Render("none")
	}
	if m.source != "" {
		run += m.theme.muted.Render("  " + m.source)
	}
	if m.following {
		run += m.theme.totalCost.Render("  ● live")
	}

	lines := []string{
		run,
		head,
		m.usageLine("Step:", v.StepUsage, m.theme.stepCost),
		m.usageLine("Total:", &v.GlobalUsage, m.theme.totalCost),
	}
	return m.box(strings.Join(lines, "\n"), inner, infoHeight)
}

func (m Model) usageLine(label string, u *usage.Usage, cost lipgloss.Style) string {
	t := m.theme
	if u == nil || u.TotalTokens == 0 {
		return t.label.Render(label+" ") + t.placeholder.Render("no usage")
	}
	return t.label.Render(label+" ") +
		t.tokens.Render(formatTokens(u.TotalTokens)) +
		t.label.Render(" tok p:") + t.value.Render(formatTokens(u.PromptTokens)) +
		t.label.Render(" c:") + t.value.Render(formatTokens(u.CompletionTokens)) +
		t.label.Render(" cached:") + t.value.Render(formatTokens(u.CachedTokens)) +
		t.label.Render(" think:") + t.value.Render(formatTokens(u.ReasoningTokens)) +
		t.label.Render(" cost:") + cost.Render(formatCost(*u))
}

func (m Model) renderPane(title, text, empty string, scroll, width, height int, style lipgloss.Style) string {
	inner := width - 2
	if text == "" {
		text = empty
	}
	body, indicator := scrolled(wrap(text, inner), scroll, height-3)

	lines := []string{m.theme.panelTitle.Render(title)}
	for _, l := range body {
		lines = append(lines, style.Render(l))
	}
	if indicator != "" {
		lines = append(lines, m.theme.muted.Render(indicator))
	}
	return m.box(strings.Join(lines, "\n"), inner, height)
}

func (m Model) renderModal(v nav.View, width, height int) string {
	w := min(width-6, maxModalW)
	h := min(height-4, maxModalH)
	title, border := "Reasoning [h/j scroll, esc/r close]", m.theme.reasoningBorder
	if v.Modal == nav.ModalFinalOutput {
		title, border = "Final Output [h/j scroll, esc/o close]", m.theme.finalBorder
	}

	// Border and padding take four columns, border and title three rows.
	body, indicator := scrolled(wrap(v.ModalContent, w-4), v.ModalScroll, h-3)
	lines := []string{m.theme.panelTitle.Render(title)}
	for _, l := range body {
		lines = append(lines, m.theme.value.Render(l))
	}
	if indicator != "" {
		lines = append(lines, m.theme.muted.Render(indicator))
	}

	box := m.theme.modal.
		BorderForeground(border).
		Width(w - 2).
		Height(h - 2).
		MaxHeight(h).
		Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// box draws content in a bordered panel of inner width and total height.
func (m Model) box(content string, inner, height int) string {
	return m.theme.panel.
		Width(inner).
		Height(max(1, height-2)).
		MaxHeight(height).
		Render(content)
}

// ---------------------------------------------------------------------------
// Text helpers
// ---------------------------------------------------------------------------

// wrap breaks text into lines no wider than width cells.
func wrap(text string, width int) []string {
	if width <= 0 {
		return strings.Split(text, "\n")
	}
	return strings.Split(lipgloss.NewStyle().Width(width).Render(text), "\n")
}

// scrolled returns the rows lines[scroll:] that fit in height, and a
// position indicator when the text overflows.
func scrolled(lines []string, scroll, height int) ([]string, string) {
	height = max(1, height)
	if len(lines) <= height {
		return lines, ""
	}
	height = max(1, height-1)
	start := min(scroll, len(lines)-1)
	end := min(len(lines), start+height)
	return lines[start:end], fmt.Sprintf(" ↕ %d-%d/%d", start+1, end, len(lines))
}

// shortID is the first six characters after the id's prefix.
func shortID(id string) string {
	if _, rest, ok := strings.Cut(id, "-"); ok && rest != "" {
		id = rest
	}
	r := []rune(id)
	return string(r[:min(6, len(r))])
}

func formatTokens(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprint(n)
}

func formatCost(u usage.Usage) string {
	if !u.CostKnown() {
		return "n/a"
	}
	return fmt.Sprintf("$%.4f", *u.Cost)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:max(0, n-1)]) + "…"
}
