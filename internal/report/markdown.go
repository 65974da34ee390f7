package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/bsddscan/bsddscan/internal/model"
)

// maxClassRows caps the per-class table in the Markdown summary. Full data
// lives in the JSON document and the database; the Markdown report is for
// humans.
const maxClassRows = 100

// MarkdownWriter outputs a human-oriented crawl summary in GitHub-flavored
// Markdown, built with the nao1215/markdown fluent API.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given
// writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl summary in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeFailures(md, report)
	w.writeClasses(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the run summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("bSDD Crawl Report")
	md.PlainText("")

	status := "Complete"
	if report.Truncated {
		status = "Truncated (limit reached or cancelled)"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start class", "`" + report.StartURI + "`"},
			{"Classes collected", strconv.Itoa(report.ClassCount())},
			{"Failed classes", strconv.Itoa(report.FailedCount())},
			{"Waves", strconv.Itoa(report.Waves)},
			{"Elapsed", report.Elapsed().Round(time.Millisecond).String()},
			{"Finished", report.FinishedAt.Format("2006-01-02 15:04:05 MST")},
			{"Status", status},
		},
	})
	md.PlainText("")
}

// writeFailures lists identifiers missing from the output, so the gap is
// visible instead of silently absent.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	if report.FailedCount() == 0 {
		return
	}

	md.H2("Unreachable Classes")
	md.PlainText("These classes failed every fetch attempt and are absent from the result set.")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Failed))
	for _, failed := range report.Failed {
		rows = append(rows, []string{
			"`" + failed.URI + "`",
			strconv.Itoa(failed.Attempts),
			failed.Error,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URI", "Attempts", "Last Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeClasses writes the collected class table, capped at maxClassRows.
func (w *MarkdownWriter) writeClasses(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Classes")
	md.PlainText("")

	classes := report.Classes
	capped := false
	if len(classes) > maxClassRows {
		classes = classes[:maxClassRows]
		capped = true
	}

	rows := make([][]string, 0, len(classes))
	for _, class := range classes {
		rows = append(rows, []string{
			class.Code,
			class.ClassName,
			strconv.Itoa(len(class.ChildClasses)),
			strconv.Itoa(class.PropertyCount()),
			strconv.Itoa(len(class.Relations)),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Code", "Name", "Children", "Properties", "Relations"},
		Rows:   rows,
	})

	if capped {
		md.PlainText("")
		md.PlainText("Showing the first " + strconv.Itoa(maxClassRows) +
			" of " + strconv.Itoa(report.ClassCount()) +
			" classes. Use --json for the complete document.")
	}
}
