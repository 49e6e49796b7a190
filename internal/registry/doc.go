// Package registry provides the central "glue" for the processor system.
//
// The Registry maps the stable kind strings stored in pipeline documents
// (e.g., "filter", "bundlebuilder") to the compiled Go code implementing
// them: a configuration factory, a processor constructor, the port layout
// derived from a configuration, and the rules about which kinds may feed
// which.
//
// Every kind lives in its own package under modules/ and registers itself
// through the Module interface. During application startup the registry is
// populated and then validated, so a kind with a broken definition is a
// startup failure instead of a surprise halfway through a build.
package registry
