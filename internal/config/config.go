package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. The crawl defaults are tuned for the public
// bSDD service: eight workers with a 200ms per-worker delay keeps the
// sustained request rate polite while still finishing the IFC class tree in
// minutes.
const (
	// DefaultWorkers is the worker pool size: the maximum number of class
	// fetches in flight at once.
	DefaultWorkers = 8

	// DefaultDelay is the politeness delay applied per worker around each
	// fetch. With W workers the sustained rate is roughly W/delay, so this
	// bounds load on the dictionary service without serializing the crawl.
	DefaultDelay = 200 * time.Millisecond

	// DefaultFetchTimeout bounds one class fetch. Without it a single
	// unresponsive class would stall the whole wave barrier.
	DefaultFetchTimeout = 30 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "bsddscan"
)

// Config holds all options for a crawl run.
// It is populated from CLI flags plus the optional config file and passed
// through the application explicitly rather than via global state.
type Config struct {
	// StartClass is the class URI or bare class code seeding the crawl.
	StartClass string

	// Workers is the worker pool size (concurrent fetches per wave).
	Workers int

	// Delay is the per-worker politeness delay around each fetch.
	Delay time.Duration

	// FetchTimeout is the deadline for a single class fetch.
	FetchTimeout time.Duration

	// MaxClasses stops the crawl after collecting this many classes.
	// Zero means crawl until the frontier is empty.
	MaxClasses int

	// MaxWaves stops the crawl after this many waves. Zero means unbounded.
	MaxWaves int

	// MaxAttempts drops a failing class after this many fetch attempts.
	// Zero retries whenever the class is rediscovered as a child.
	MaxAttempts int

	// Scrape selects the HTML identifier-page fetcher instead of the REST
	// API. Properties and incoming relations are unavailable in this mode.
	Scrape bool

	// APIBase overrides the REST API base URL.
	APIBase string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// Verbose enables debug-level log output.
	Verbose bool

	// JSONReport writes the full class document as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes a Markdown run summary.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to this path instead of stdout.
	ReportFile string

	// DBDir is the directory holding the SQLite database with crawled
	// classes and run history. Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether to persist results. Disabled via --no-db.
	SaveToDB bool

	// MetricsAddr, when set, serves Prometheus metrics at this address
	// (e.g., ":9090") for the duration of the crawl.
	MetricsAddr string

	// ConfigFilePath is the explicit config file path, if any.
	ConfigFilePath string

	// Dictionaries holds per-dictionary overrides loaded from the config
	// file, keyed by dictionary base URI.
	Dictionaries *File
}

// NewConfig creates a Config with defaults. Non-zero defaults live here
// rather than in flag declarations so library callers get the same values.
func NewConfig() *Config {
	return &Config{
		Workers:      DefaultWorkers,
		Delay:        DefaultDelay,
		FetchTimeout: DefaultFetchTimeout,
	}
}

// XDGDataDir returns the XDG data directory for bsddscan
// (~/.local/share/bsddscan on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for bsddscan.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem found as
// a sentinel error usable with errors.Is.
func (c *Config) Validate() error {
	if c.StartClass == "" {
		return ErrNoStartClass
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}
	if c.MaxClasses < 0 || c.MaxWaves < 0 || c.MaxAttempts < 0 {
		return ErrInvalidLimit
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ApplyDictionaryOverrides merges per-dictionary settings from the config
// file for the dictionary containing startURI, if any match.
func (c *Config) ApplyDictionaryOverrides(startURI string) {
	if c.Dictionaries == nil {
		return
	}
	override := c.Dictionaries.ForClassURI(startURI)
	if override.Workers > 0 {
		c.Workers = override.Workers
	}
	if override.Delay > 0 {
		c.Delay = override.Delay
	}
	if override.MaxClasses > 0 {
		c.MaxClasses = override.MaxClasses
	}
	if override.MaxWaves > 0 {
		c.MaxWaves = override.MaxWaves
	}
}
