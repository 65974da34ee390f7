// Package log constructs the slog loggers used throughout bsddscan.
//
// The verbosity flag is threaded here once and mapped to a level; every
// component receives an explicit *slog.Logger instead of writing to the
// console directly.
package log
