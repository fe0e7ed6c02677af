// Package sqlite provides a SessionStore on top of an embedded SQLite
// database. Writes use optimistic concurrency on Session.Version.
package sqlite
