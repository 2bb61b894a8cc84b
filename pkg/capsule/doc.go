// Package capsule captures live Go values into self-describing byte
// envelopes and rehydrates them later, possibly in another process.
//
// Values that serialize cleanly (primitives, slices, maps, plain
// structs) round-trip to equivalent values. Values backed by live
// resources (open files, sockets, database handles) rehydrate as
// ReconnectionDescriptors that a Reconnector can claim and reattach.
// Values that cannot be captured at all become Placeholders carrying
// enough context to explain what was lost.
//
// Capture behavior is pluggable through Providers registered on an
// Engine. Each provider claims a family of types via Match, snapshots
// them into an ordered StateBundle via Extract, and reverses the
// process via Rebuild. The registry consults providers in priority
// order, lowest number first.
//
// Encoding runs in one of two modes. Strict mode fails the whole
// operation on the first unencodable value. Lenient mode substitutes a
// Placeholder for the offending sub-value, records a Warning, and keeps
// going. Decode never performs I/O in either mode.
package capsule
