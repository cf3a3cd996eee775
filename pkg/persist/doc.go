// Package persist orchestrates the estate persist workflow: collecting
// backend parameters (interactively or from flags and environment
// overrides), resolving credentials, verifying the target bucket, writing
// the backend file and manifest, and optionally publishing the change as a
// pull request.
//
// Parameter collection is an abstract capability with two implementations,
// so the orchestrator never knows whether values came from prompts or from
// flags. Pull-request publication is best effort: once the backend files are
// durably written, a missing token or unreachable host downgrades to a
// skipped outcome instead of failing the command.
package persist
