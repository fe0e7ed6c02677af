/*
Package domain contains the core domain models of the onramp protocol engine.

It defines the per-user Session, the immutable StepDefinition records that make
up a protocol, the ResponsePayload handed back to transport adapters, and the
error taxonomy shared by every layer. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Session: The persisted progress of one platform user through the protocol.
  - StepDefinition: One unit of the protocol (narrative, identity issuance, risk annotation).
  - StepRecord: The recorded output of a completed step, used for replay.
  - ResponsePayload: What the host should render after an Advance call.
*/
package domain
