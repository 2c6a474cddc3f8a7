package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/authprobe/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the reason behind indeterminate verdicts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeServices(&sb, report)
	w.writeExposure(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         AUTHPROBE REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Host:       %s\n", report.Host)
	fmt.Fprintf(sb, "Scan Date:  %s\n", report.ScannedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:    %s\n", report.Elapsed.Round(time.Millisecond))
	sb.WriteString("\n")
}

// writeServices writes one row per service.
func (w *SimpleWriter) writeServices(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SERVICES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Services) == 0 {
		sb.WriteString("  No services configured\n\n")
		return
	}

	fmt.Fprintf(sb, "  %-10s %-6s %-5s %-9s %-8s %s\n", "SERVICE", "PORT", "OPEN", "PROTOCOL", "SECURED", "VERDICT")
	for _, s := range report.Services {
		fmt.Fprintf(sb, "  %-10s %-6d %-5s %-9s %-8s %s\n",
			s.Service,
			s.Port,
			yesNo(s.Status.PortOpen),
			yesNo(s.Status.ProtocolMatched),
			yesNo(s.Status.AuthEnforced),
			verdict(s),
		)
		if s.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", s.Error)
		}
		if w.verbose && s.Outcome.Reason != "" {
			fmt.Fprintf(sb, "    Reason: %s\n", s.Outcome.Reason)
		}
	}
	sb.WriteString("\n")
}

// writeExposure summarizes services open without authentication.
func (w *SimpleWriter) writeExposure(sb *strings.Builder, report *model.ScanReport) {
	exposed := report.Exposed()

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("EXPOSURE\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(exposed) == 0 {
		sb.WriteString("  No service accepted unauthenticated access.\n\n")
		return
	}

	for _, s := range exposed {
		fmt.Fprintf(sb, "  [!!!] %s on port %d accepts clients without credentials\n", s.Service, s.Port)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by authprobe\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
