// Package config loads, normalizes, and validates transvox configuration.
//
// Resolution order mirrors the reference deployment: an optional .env file is
// loaded first, then the TOML config file, then TRANSVOX_* environment
// variables override individual fields. All path fields are expanded and
// made absolute before use.
package config
