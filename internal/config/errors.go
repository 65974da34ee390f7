package config

import "errors"

// Configuration validation errors returned by Config.Validate().
//
// Design decision: Package-level sentinel errors rather than ad hoc
// errors.New calls inside Validate, so callers can branch with errors.Is
// while users still get a readable message.
var (
	// ErrNoStartClass is returned when no start class URI or code was given.
	ErrNoStartClass = errors.New("no start class specified: provide a class URI or code such as IfcRoot")

	// ErrInvalidWorkers is returned when the worker pool size is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidDelay is returned when the politeness delay is negative.
	// Use 0 to disable the delay.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidFetchTimeout is returned when the per-fetch timeout is not
	// positive. A crawl without a fetch deadline can stall on one class.
	ErrInvalidFetchTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrInvalidLimit is returned when max-classes, max-waves, or
	// max-attempts is negative. Use 0 for unbounded.
	ErrInvalidLimit = errors.New("invalid limit: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
