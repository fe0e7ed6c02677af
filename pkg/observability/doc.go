/*
Package observability exposes Prometheus metrics for the onboarding engine.

Metrics are fed by lifecycle hooks (step completions, replays, identity
issuance, risk verdicts) and by the outcome of every Advance call. Each
Metrics value owns its own registry so several engines can coexist in one
process and in tests.
*/
package observability
