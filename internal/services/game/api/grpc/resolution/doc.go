// Package resolution exposes the narequenta.game.v1.ResolutionService gRPC
// API. Messages are protobuf well-known types: raw payloads and references
// travel as StringValue, sheets, entities and reports as Struct.
package resolution
