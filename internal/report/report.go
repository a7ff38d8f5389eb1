// Package report prints text summaries of a trace: the run tree, totals,
// and a linear event listing.
package report

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/trace"
	"github.com/kehao95/rlmtrace/internal/usage"
)

// ColorEnabled reports whether f is a terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type styles struct {
	title   lipgloss.Style
	runID   lipgloss.Style
	depth   lipgloss.Style
	query   lipgloss.Style
	dim     lipgloss.Style
	total   lipgloss.Style
	cost    lipgloss.Style
	code    lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	bold    lipgloss.Style
	warning lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		runID:   r.NewStyle().Foreground(lipgloss.Color("6")),
		depth:   r.NewStyle().Foreground(lipgloss.Color("3")),
		query:   r.NewStyle().Foreground(lipgloss.Color("2")),
		dim:     r.NewStyle().Faint(true),
		total:   r.NewStyle().Foreground(lipgloss.Color("5")),
		cost:    r.NewStyle().Foreground(lipgloss.Color("2")),
		code:    r.NewStyle().Foreground(lipgloss.Color("4")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")),
		failed:  r.NewStyle().Foreground(lipgloss.Color("1")),
		bold:    r.NewStyle().Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// Printer writes reports to one writer.
type Printer struct {
	w   io.Writer
	st  styles
	err error
}

// New returns a Printer; color selects ANSI styling.
func New(w io.Writer, color bool) *Printer {
	return &Printer{w: w, st: newStyles(w, color)}
}

func (p *Printer) println(parts ...string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, strings.Join(parts, "")+"\n")
}

func (p *Printer) flush() error {
	err := p.err
	p.err = nil
	return err
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// Tree prints every root and its descendants with per-run event counts and
// usage.
func (p *Printer) Tree(f *trace.Forest) error {
	p.println(p.st.title.Render("── Run Tree ──"))
	p.println()
	roots := f.Roots()
	for i, r := range roots {
		p.node(f, r, "", i == len(roots)-1)
	}
	p.println()
	return p.flush()
}

var eventOrder = []tape.EventType{
	tape.EventRunStart,
	tape.EventCodeGenerated,
	tape.EventExecutionResult,
	tape.EventFinalResult,
}

func (p *Printer) node(f *trace.Forest, n *trace.RunNode, prefix string, last bool) {
	connector, indent := "├─ ", "│   "
	if last {
		connector, indent = "└─ ", "    "
	}

	line := prefix + connector + p.st.runID.Render(n.RunID) + " " + p.st.depth.Render("depth="+strconv.Itoa(n.Depth))
	if q := runQuery(n); q != "" {
		line += " " + p.st.query.Render(strconv.Quote(truncate(q, 60)))
	}
	p.println(line)

	inner := prefix + indent
	p.println(inner, p.st.dim.Render(eventSummary(n)))

	if u := n.Usage(); u.TotalTokens > 0 {
		p.println(inner, p.st.total.Render(fmt.Sprintf("Total: %s tokens, %s", groupDigits(u.TotalTokens), formatCost(u))))
	}

	kids := f.Children(n.RunID)
	for i, c := range kids {
		p.node(f, c, inner, i == len(kids)-1)
	}
}

func runQuery(n *trace.RunNode) string {
	for _, s := range n.Steps {
		if s.EventType == tape.EventRunStart && s.Query != "" {
			return s.Query
		}
	}
	return ""
}

func eventSummary(n *trace.RunNode) string {
	counts := make(map[tape.EventType]int)
	var extra []tape.EventType
	for _, s := range n.Steps {
		if counts[s.EventType] == 0 && !knownEvent(s.EventType) {
			extra = append(extra, s.EventType)
		}
		counts[s.EventType]++
	}
	if n.Final != nil {
		counts[tape.EventFinalResult]++
	}

	var parts []string
	for _, t := range slices.Concat(eventOrder, extra) {
		if c := counts[t]; c > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", t, c))
		}
	}
	return strings.Join(parts, ", ")
}

func knownEvent(t tape.EventType) bool {
	return slices.Contains(eventOrder, t)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats prints totals over the forest. entries is the number of records
// read from the log.
func (p *Printer) Stats(f *trace.Forest, entries int) error {
	p.println(p.st.bold.Render("── Statistics ──"))
	p.println()
	p.println("Total log entries: ", strconv.Itoa(entries))
	p.println("Total runs: ", strconv.Itoa(f.Len()))
	p.println("Root runs: ", strconv.Itoa(len(f.Roots())))
	p.println("Max depth: ", strconv.Itoa(f.MaxDepth()))

	u := f.GlobalUsage()
	p.println(p.st.total.Render("Total tokens: " + groupDigits(u.TotalTokens)))
	p.println(p.st.cost.Render("Total cost: " + formatCost(u)))

	d := f.Diagnostics()
	for _, c := range []struct {
		label string
		n     int
	}{
		{"Skipped records", d.Skipped},
		{"Duplicate events", d.Duplicates},
		{"Parent conflicts", d.ParentConflicts},
		{"Orphan runs", d.Orphans},
		{"Broken cycles", d.Cycles},
	} {
		if c.n > 0 {
			p.println(p.st.warning.Render(c.label + ": " + strconv.Itoa(c.n)))
		}
	}
	return p.flush()
}

// ---------------------------------------------------------------------------
// Linear
// ---------------------------------------------------------------------------

// Linear prints events in the order given, with a preview of code and
// output.
func (p *Printer) Linear(events []tape.LogEvent) error {
	p.println(p.st.bold.Render("── Log Entries ──"))
	p.println()
	for _, ev := range events {
		step := ""
		if ev.Step != nil && *ev.Step != 0 {
			step = " step=" + strconv.Itoa(*ev.Step)
		}
		p.println(
			p.st.dim.Render("["+ev.Time.Local().Format("15:04:05")+"]"),
			" ", p.st.bold.Render(string(ev.EventType)), step,
			" ", p.st.runID.Render("run_id="+truncate(ev.RunID, 16)),
		)

		switch ev.EventType {
		case tape.EventCodeGenerated:
			if ev.Code == "" {
				break
			}
			p.println(p.st.code.Render("  Code:"))
			lines := strings.Split(ev.Code, "\n")
			for _, l := range lines[:min(5, len(lines))] {
				p.println("    ", l)
			}
			if ev.Usage != nil {
				p.println(p.st.runID.Render(fmt.Sprintf("  %d tokens, %s", ev.Usage.TotalTokens, formatCost(*ev.Usage))))
			}
		case tape.EventExecutionResult:
			if ev.Output == "" {
				break
			}
			style := p.st.ok
			if ev.HasError {
				style = p.st.failed
			}
			out := strings.ReplaceAll(truncate(ev.Output, 100), "\n", `\n`)
			p.println(style.Render("  Output: " + out))
		}
		p.println()
	}
	return p.flush()
}

// ---------------------------------------------------------------------------
// Formatting helpers
// ---------------------------------------------------------------------------

func formatCost(u usage.Usage) string {
	if !u.CostKnown() {
		return "cost unknown"
	}
	return fmt.Sprintf("$%.6f", *u.Cost)
}

// groupDigits formats n with thousands separators.
func groupDigits(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
