// Package server wires and runs the sync server's transport.
//
// It provides orchestration for the HTTP server lifecycle, including
// startup, signal handling, and graceful shutdown of the push registry and
// background sweeps alongside the listener.
package server
