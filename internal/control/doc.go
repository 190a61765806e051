// Package control provides the ambient configuration and metrics layer
// shared by a Runtime: a dynamic configuration store and a counter-based
// metrics registry. It carries no dependency on the scheduler or AsyncIO
// types so it can be reused by cmd/runtimectl without pulling in the rest of
// the module.
package control
