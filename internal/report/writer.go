package report

import (
	"errors"
	"io"

	"github.com/nao1215/authprobe/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer defines the interface for report output.
// Implementations write scan results in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ScanReport) (int, error)
}

// MultiWriter sends one report to several Writers, such as a report file
// and the terminal summary.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every Writer, even after one fails, and
// returns the bytes written across all of them with the failures joined.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// verdict returns the title-cased label of a result.
// A Caser is stateful, so one is created per call.
func verdict(result model.ServiceResult) string {
	if result.Error != "" {
		return "Error"
	}
	return cases.Title(language.English).String(result.Outcome.Label())
}

// yesNo renders a status flag.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
