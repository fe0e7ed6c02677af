// Package runtime implements the Step Protocol Engine: the per-user state
// machine that validates step commands against the registry, issues identity
// and risk artifacts on first visits and replays recorded output afterwards.
package runtime
