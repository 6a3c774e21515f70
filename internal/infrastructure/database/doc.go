// Package database manages the SQLite connection for Herp Keeper Core.
//
// It owns connection pragmas (WAL, busy timeout, foreign keys), file
// permissions, health checks, and versioned schema migrations embedded in
// the binary by the top-level migrations package.
package database
