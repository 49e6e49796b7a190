// Package app contains the core application logic. It wires the processor
// registry, the asset database, the cache store and the controller
// together and exposes the operations the command line offers, decoupled
// from any specific entrypoint.
package app
