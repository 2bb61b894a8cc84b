// Package providers contains the built-in capability providers: one per
// category of runtime value a structural encoder cannot represent.
// Synchronization primitives, buffered channels, compiled patterns,
// iterators, and weak references capture to equivalent rebuilt values;
// live resources (files, sockets, database handles, processes) capture
// to ReconnectionDescriptors; script functions choose between reference
// and full-source capture; the structural provider is the
// lowest-priority catch-all for plain data.
package providers
