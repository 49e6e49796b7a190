// Package dag holds the node-level dependency structure derived from a
// pipeline's edges. It detects cycles, produces a deterministic topological
// order (Kahn's algorithm, ties broken by insertion order) and answers
// ancestor/descendant queries used for partial validation and incremental
// invalidation.
package dag
