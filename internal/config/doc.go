// Package config loads, normalizes, and validates the TOML configuration for
// the eva daemon.
//
// Load resolves the config path (explicit flag, then ~/.config/eva/config.toml),
// decodes it over repository defaults, expands home-relative paths, and
// applies validation so the rest of the system can trust every field. The
// embedded sample config backs `eva config init`.
package config
