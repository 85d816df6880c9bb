// Package diagnostics owns the looking-glass diagnostic invocation path.
//
// Ownership boundary:
// - target validation (IP literal or hostname grammar)
//
// - request normalization (clamp-don't-reject numeric parameters)
//
// - fixed kind -> tool -> argv dispatch
//
// - outcome classification (validation, tool unavailable, execution failed)
//
// Process execution itself is delegated to tools.CommandRunner.
package diagnostics
