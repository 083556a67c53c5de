// Package config loads, validates, and normalizes assetizer configuration
// from TOML files, providing defaults for every value and helpers for the
// derived filesystem layout (assets directory, evidence database path).
package config
