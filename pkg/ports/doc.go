/*
Package ports defines the driven ports (interfaces) for the onramp engine.

These interfaces decouple the protocol engine from external implementations,
allowing it to work with various storage backends and locking strategies.

# Key Interfaces

  - SessionStore: Responsible for persisting and loading per-user Sessions.
  - Lister: Optional capability of stores that can enumerate sessions.
  - DistributedLocker: Provides distributed locking for handling concurrent access to a user's session across replicas.
*/
package ports
