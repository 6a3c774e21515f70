// Package logging provides structured logging for Herp Keeper Core.
//
// It wraps log/slog with configuration-driven output format and level,
// and stamps every record with the service name and version.
package logging
