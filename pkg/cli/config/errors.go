package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound = goerr.New("configuration file not found")
	ErrInvalidConfig  = goerr.New("invalid configuration")
	ErrDuplicateID    = goerr.New("duplicate ID")
	ErrInvalidID      = goerr.New("invalid ID format")
	ErrMissingName    = goerr.New("name is required")
	ErrEmptySection   = goerr.New("section requires at least one entry")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	SectionKey    = "section"
	EntryIDKey    = "id"
	EntryIndexKey = "index"
)
