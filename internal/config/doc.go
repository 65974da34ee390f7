// Package config holds crawl configuration: defaults, CLI-populated
// settings, validation, and the optional .bsddscan YAML file with
// per-dictionary overrides.
package config
