// Package config provides application configuration management from
// environment variables, with an optional YAML file for plan definitions.
//
// Every setting has a default; LoadConfig only fails validation when the
// combination is unusable (missing database URL, colliding ports, unknown
// default plan). Malformed values in optional settings fall back to their
// defaults rather than erroring, matching the engine's treatment of
// configuration problems as safe-default conditions.
package config
