// Package credentials resolves remote-state backend credentials from the
// environment across the S3-compatible providers concordat supports.
//
// Providers are modelled as an ordered list of strategies; each strategy is a
// pure function from an environment map to a resolved credential set. The
// first strategy with a complete set (access key + secret key) wins, and its
// values are mapped onto the canonical AWS variable names that the IaC tool
// understands. Raw secret values are held only in a transient Material value
// and are never written to disk or to log output; the Set record carries
// presence flags and variable names only.
package credentials
