// Package config loads and validates YAML configuration for the stream
// tools. Files are read once at startup, ${VAR} references are expanded from
// the environment, zero values are filled with defaults, and Validate
// reports the first problem with a field-path error.
package config
