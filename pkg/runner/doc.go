// Package runner drives the external OpenTofu binary through a fixed,
// ordered command sequence and captures the result.
//
// The sequence is data, not control flow: a step list is built up front
// (version probe, init, then the requested verb) so failure handling,
// logging, and tests treat every step uniformly. A step's non-zero exit
// short-circuits the rest, and the triggering exit code is carried unchanged
// to the caller. Tool output streams live to the caller's writers; the
// subprocess environment is assembled explicitly and never echoed.
package runner
