// Package domain defines the narequenta MCP tools: their input and output
// shapes and the handlers that call the game service.
package domain
