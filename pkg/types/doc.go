/*
Package types provides the shared data structures for rendercache.

This package defines the contracts between the caching tiers and their
consumers: artifact references produced by the session tier, entries and
statistics exposed by the edge tier, and the rendered content types the
system recognizes.

The package is deliberately dependency-free so that every other package can
import it without cycles.
*/
package types
