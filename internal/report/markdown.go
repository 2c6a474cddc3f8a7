package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/authprobe/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeServices(md, report)
	w.writeAlert(md, report)
	w.writeDetails(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("authprobe Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Host", "`" + report.Host + "`"},
			{"Scan Date", report.ScannedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", report.Elapsed.Round(time.Millisecond).String()},
			{"Services", strconv.Itoa(len(report.Services))},
		},
	})
	md.PlainText("")
}

// writeServices writes the per-service status table.
func (w *MarkdownWriter) writeServices(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Services")
	md.PlainText("")

	if len(report.Services) == 0 {
		md.PlainText("No services configured.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Services))
	for i, s := range report.Services {
		rows[i] = []string{
			s.Service,
			strconv.Itoa(int(s.Port)),
			mark(s.Status.PortOpen),
			mark(s.Status.ProtocolMatched),
			mark(s.Status.AuthEnforced),
			verdict(s),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Service", "Port", "Open", "Protocol", "Secured", "Verdict"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Services) > 1 {
		w.writePieChart(md, report)
	}
}

// writePieChart writes a mermaid pie chart of verdicts.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.ScanReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Verdicts"),
		piechart.WithShowData(true),
	)

	counts := make(map[string]uint64)
	var order []string
	for _, s := range report.Services {
		v := verdict(s)
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	for _, v := range order {
		chart.LabelAndIntValue(v, counts[v])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert based on the exposure.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport) {
	exposed := report.Exposed()
	switch {
	case len(exposed) > 0:
		md.Cautionf(
			"%d service(s) accept connections without authentication. Anyone who can reach this host can read and modify their data.",
			len(exposed),
		)
	case hasErrors(report):
		md.Warningf("Some services could not be checked. See the details below.")
	default:
		md.Tip("No service accepted unauthenticated access.")
	}
	md.PlainText("")
}

// writeDetails explains entries whose verdict needs context.
func (w *MarkdownWriter) writeDetails(md *markdown.Markdown, report *model.ScanReport) {
	for _, s := range report.Services {
		switch {
		case s.Error != "":
			md.Details(s.Service+": error", s.Error)
		case s.Outcome.Kind == model.OutcomeIndeterminate:
			md.Details(s.Service+": assumed secured", s.Outcome.Reason)
		default:
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by authprobe*")
}

// mark renders a status flag as a check mark or a cross.
func mark(b bool) string {
	if b {
		return "✅"
	}
	return "❌"
}

// hasErrors reports whether any service failed unexpectedly.
func hasErrors(report *model.ScanReport) bool {
	for _, s := range report.Services {
		if s.Error != "" {
			return true
		}
	}
	return false
}
