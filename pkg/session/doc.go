/*
Package session implements session management and persistence orchestration.

It serializes the read-modify-persist sequence of every user's session behind a
per-user lock, optionally coordinated across replicas through a distributed
locker, so that concurrent events for the same user can never both observe a
step as not yet completed.
*/
package session
