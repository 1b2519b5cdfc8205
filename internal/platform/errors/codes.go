// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Entity errors
	CodeEntityEmptyID        Code = "ENTITY_EMPTY_ID"
	CodeEntityInvalidKind    Code = "ENTITY_INVALID_KIND"
	CodeEntityInvalidEssence Code = "ENTITY_INVALID_ESSENCE"
	CodeEssenceNotFound      Code = "ESSENCE_NOT_FOUND"

	// Resolution errors
	CodeResolutionMalformedPayload Code = "RESOLUTION_MALFORMED_PAYLOAD"
	CodeResolutionTargetNotFound   Code = "RESOLUTION_TARGET_NOT_FOUND"
	CodeResolutionMutationFailed   Code = "RESOLUTION_MUTATION_FAILED"
	CodeResolutionPayloadReplayed  Code = "RESOLUTION_PAYLOAD_REPLAYED"

	// Ruleset errors
	CodeRulesetInvalid Code = "RULESET_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// AllCodes lists every code that must carry a localized message.
var AllCodes = []Code{
	CodeUnknown,
	CodeEntityEmptyID,
	CodeEntityInvalidKind,
	CodeEntityInvalidEssence,
	CodeEssenceNotFound,
	CodeResolutionMalformedPayload,
	CodeResolutionTargetNotFound,
	CodeResolutionMutationFailed,
	CodeResolutionPayloadReplayed,
	CodeRulesetInvalid,
	CodeNotFound,
}

// GRPCCode maps domain error codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - client sent bad input
	case CodeEntityEmptyID,
		CodeEntityInvalidKind,
		CodeEntityInvalidEssence,
		CodeResolutionMalformedPayload,
		CodeRulesetInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeResolutionPayloadReplayed:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeEssenceNotFound,
		CodeResolutionTargetNotFound:
		return codes.NotFound

	case CodeUnknown:
		return codes.Unknown

	default:
		return codes.Internal
	}
}
