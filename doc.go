/*
Package onramp is a deterministic, per-user onboarding protocol engine.

Users walk an ordered sequence of steps. The first visit of a step issues
its artifacts (a salted one-way secure identifier, a cosmetic risk verdict,
per-user tokens) and records the rendered narrative; later visits replay the
record verbatim. Progress is persisted through a pluggable session store and
every user's read-modify-write is serialized.

# Usage

	eng, err := onramp.New(os.Getenv("ONRAMP_SALT"))
	if err != nil {
		log.Fatal(err)
	}

	payload, err := eng.Advance(ctx, "telegram:42", "next")
	if domain.IsUserFacing(err) {
		// Locked or unknown steps still come with a payload to show.
	}
	fmt.Println(payload.Narrative)

# Storage

The default store is in-memory. Use WithStore with one of the adapters
(file, Redis, SQLite) and optionally wrap it with the encryption middleware
from pkg/persistence/middleware. WithLocker adds a distributed lock for
multi-replica deployments.

# Transports

pkg/adapters/http exposes the engine over REST, pkg/adapters/mcp as an MCP
server, and cmd/onramp bundles both with an interactive terminal client.
*/
package onramp
