package report

import (
	"fmt"
	"io"
	"time"

	"github.com/bsddscan/bsddscan/internal/model"
)

// SimpleWriter outputs a short human-readable summary. This is the default
// terminal output when no structured format is requested.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var total int

	n, err := fmt.Fprintf(w.output, "Crawl of %s\n", report.StartURI)
	total += n
	if err != nil {
		return total, err
	}

	n, err = fmt.Fprintf(w.output, "  classes: %d  failed: %d  waves: %d  elapsed: %s\n",
		report.ClassCount(),
		report.FailedCount(),
		report.Waves,
		report.Elapsed().Round(time.Millisecond),
	)
	total += n
	if err != nil {
		return total, err
	}

	if report.Truncated {
		n, err = fmt.Fprintln(w.output, "  note: crawl stopped before the frontier was exhausted")
		total += n
		if err != nil {
			return total, err
		}
	}

	if report.FailedCount() > 0 {
		n, err = fmt.Fprintln(w.output, "  unreachable classes:")
		total += n
		if err != nil {
			return total, err
		}
		for _, failed := range report.Failed {
			n, err = fmt.Fprintf(w.output, "    %s (%d attempts): %s\n",
				failed.URI, failed.Attempts, failed.Error)
			total += n
			if err != nil {
				return total, err
			}
		}
	}

	return total, nil
}
