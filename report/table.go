package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/webcompat/interventions-harness/framework/wctest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects how PrintSummary renders tables.
type Mode int

const (
	ASCII    Mode = iota // fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown, for CI job summaries
)

func newTable(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

// PrintSummary writes a per-case table of outcomes followed by a table of the entries that did
// not pass.
func PrintSummary(out io.Writer, s Summary, m Mode) {
	cases := newTable(m)
	cases.AppendHeader(table.Row{"Case", "Pass", "Fail", "Error"})
	for _, name := range s.Cases {
		b := s.PerCase[name]
		cases.AppendRow(table.Row{name, b.Pass, b.Fail, b.Error})
	}
	cases.AppendFooter(table.Row{fmt.Sprintf("Total (%d)", s.Total()), s.Pass, s.Fail, s.Error})
	cases.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	fmt.Fprintln(out, render(cases, m))

	unsuccessful := s.Unsuccessful()
	if len(unsuccessful) == 0 {
		return
	}
	fmt.Fprintln(out)
	entries := newTable(m)
	entries.AppendHeader(table.Row{"Entry", "Outcome", "Elapsed", "Reason"})
	for _, v := range unsuccessful {
		entries.AppendRow(table.Row{v.Entry.String(), v.Outcome(), v.Result.Duration.Round(time.Millisecond),
			firstError(v.Result)})
	}
	entries.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 80}})
	fmt.Fprintln(out, render(entries, m))
}

func firstError(r wctest.TestResult) string {
	if len(r.Errors) == 0 {
		return ""
	}
	msg, _, _ := strings.Cut(r.Errors[0].Error(), "\n")
	return msg
}
