// Package workspace manages the ephemeral working directories that hold one
// command invocation's clone of an estate's IaC repository.
//
// A workspace is created fresh per invocation, is never shared, and is
// removed on every exit path unless the operator asked to keep it. Removal
// is idempotent: tearing down a workspace that is already gone is not an
// error.
package workspace
