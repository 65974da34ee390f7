// Package database persists crawled class records and run history in
// SQLite (modernc.org/sqlite, no cgo). Classes are upserted by URI so
// repeated crawls refresh records in place, while crawl_runs keeps one row
// per run for history and gap reporting.
package database
