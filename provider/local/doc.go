// Package local is an authcard backend that keeps accounts in SQLite
// through bun. It answers with the same messages as the hosted backend
// ("Invalid login credentials", "User already registered") so the card
// behaves identically during development.
package local
