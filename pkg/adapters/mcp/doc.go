// Package mcp exposes the onboarding engine as Model Context Protocol tools,
// so agents can drive a user's progress through advance, get_session and reset.
package mcp
