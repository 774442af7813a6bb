// Package state stores per-user conversation sessions and serialises work
// on a single user's session. Backends: in-memory, redis and postgres.
package state
