// Package service hosts the narequenta MCP server over stdio or streamable
// HTTP, backed by the game service gRPC API.
package service
