// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// GRPCDial caps the wait for a gRPC peer to report healthy.
const GRPCDial = 5 * time.Second

// GRPCRequest caps a single adapter-to-game gRPC call.
const GRPCRequest = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful shutdown.
const Shutdown = 5 * time.Second

// WebsocketWrite bounds a single notification write to a websocket client.
const WebsocketWrite = 2 * time.Second

// ScenarioStep bounds one scenario runner step.
const ScenarioStep = 10 * time.Second
