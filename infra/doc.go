// Package infra holds the technical adapters: the SQLite queue, the
// remote store client, connectivity probes and metrics sinks. They
// implement interfaces from the core packages and never the other way
// around.
package infra
