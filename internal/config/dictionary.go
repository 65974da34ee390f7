package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DictionaryConfig holds crawl overrides for one dictionary. Different
// dictionaries tolerate different request rates, so workers and delay are
// tunable per dictionary base URI.
type DictionaryConfig struct {
	// Workers overrides the global worker pool size. Zero keeps the global.
	Workers int `yaml:"workers,omitempty"`

	// Delay overrides the global politeness delay. Zero keeps the global.
	Delay time.Duration `yaml:"delay,omitempty"`

	// MaxClasses overrides the global class limit. Zero keeps the global.
	MaxClasses int `yaml:"maxClasses,omitempty"`

	// MaxWaves overrides the global wave limit. Zero keeps the global.
	MaxWaves int `yaml:"maxWaves,omitempty"`
}

// UnmarshalYAML decodes a dictionary entry, accepting human-readable
// durations ("500ms", "2s") for the delay field. yaml.v3 has no native
// time.Duration support, so the delay is read as a string and parsed.
func (dc *DictionaryConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Workers    int    `yaml:"workers"`
		Delay      string `yaml:"delay"`
		MaxClasses int    `yaml:"maxClasses"`
		MaxWaves   int    `yaml:"maxWaves"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	dc.Workers = raw.Workers
	dc.MaxClasses = raw.MaxClasses
	dc.MaxWaves = raw.MaxWaves
	if raw.Delay != "" {
		d, err := time.ParseDuration(raw.Delay)
		if err != nil {
			return fmt.Errorf("invalid delay %q: %w", raw.Delay, err)
		}
		dc.Delay = d
	}
	return nil
}

// File represents the structure of the .bsddscan configuration file.
type File struct {
	// Dictionaries maps dictionary base URIs to their overrides. A class
	// URI matches the entry whose key is its prefix.
	Dictionaries map[string]DictionaryConfig `yaml:"dictionaries,omitempty"`

	// Defaults contains overrides applied to every dictionary unless a
	// more specific entry matches.
	Defaults DictionaryConfig `yaml:"defaults,omitempty"`
}

// ForClassURI returns the effective overrides for a class URI: the defaults
// merged with the longest matching dictionary entry.
func (cf *File) ForClassURI(classURI string) DictionaryConfig {
	result := cf.Defaults

	var matched string
	for base, dc := range cf.Dictionaries {
		if strings.HasPrefix(classURI, base) && len(base) > len(matched) {
			matched = base
			result = merge(cf.Defaults, dc)
		}
	}
	return result
}

// merge overlays non-zero override fields onto the defaults.
func merge(defaults, override DictionaryConfig) DictionaryConfig {
	result := defaults
	if override.Workers > 0 {
		result.Workers = override.Workers
	}
	if override.Delay > 0 {
		result.Delay = override.Delay
	}
	if override.MaxClasses > 0 {
		result.MaxClasses = override.MaxClasses
	}
	if override.MaxWaves > 0 {
		result.MaxWaves = override.MaxWaves
	}
	return result
}
