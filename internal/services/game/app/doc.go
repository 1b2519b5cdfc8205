// Package server composes the game service: the SQLite store, the resolution
// processor and journal, the gRPC API with health checks, and the websocket
// notification hub.
package server
