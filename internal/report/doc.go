// Package report renders crawl results: a JSON document for tooling, a
// Markdown summary for sharing, and a short text summary for the terminal.
// All writers implement the same Writer interface so the CLI can compose
// them freely.
package report
