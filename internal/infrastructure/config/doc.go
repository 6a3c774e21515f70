// Package config loads and validates Herp Keeper Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// HERPKEEPER_* environment variable overrides. Secrets (JWT signing key,
// broker credentials, Influx token) should always come from the environment
// in production deployments.
package config
