// Package estate defines the estate identity record and the registry that
// tracks registered estates between command invocations.
//
// An estate is a named GitHub owner plus the IaC repository encoding its
// desired configuration. Records are immutable for the duration of one
// command invocation; the registry is a small SQLite database under the
// user's config directory.
package estate
