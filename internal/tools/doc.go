// Package tools provides the process-execution primitive used by diagnostics.
//
// Ownership boundary:
// - argv-only process spawning (never a shell line)
//
// - wall-clock timeout with process-group termination
//
// - combined stdout/stderr capture cap
//
// - classification of missing binaries vs other failures
package tools
