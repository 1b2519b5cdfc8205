package resolution

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/core/encoding"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed payload.schema.json
var payloadSchemaJSON []byte

const payloadSchemaURL = "https://narequenta.dev/schemas/resolution-payload.json"

var (
	payloadSchemaOnce sync.Once
	payloadSchema     *jsonschema.Schema
	payloadSchemaErr  error
)

// Target is one damage entry of a payload.
type Target struct {
	Ref    string  `json:"ref"`
	Damage float64 `json:"damage"`
}

// Payload is a decoded batch resolution command.
type Payload struct {
	// PayloadID identifies the command for replay protection. Empty means the
	// caller did not stamp one.
	PayloadID     string   `json:"payloadId,omitempty"`
	AttackerRef   string   `json:"attackerRef"`
	EssenceKey    string   `json:"essenceKey"`
	AttritionCost float64  `json:"attritionCost"`
	Targets       []Target `json:"targets"`
}

// flexRef accepts a JSON string or number and keeps it as text.
type flexRef string

func (r *flexRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = flexRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("reference must be a string or number")
	}
	*r = flexRef(n.String())
	return nil
}

type wireTarget struct {
	Ref    flexRef `json:"ref"`
	Damage float64 `json:"damage"`
}

type wirePayload struct {
	PayloadID     string       `json:"payloadId"`
	AttackerRef   flexRef      `json:"attackerRef"`
	EssenceKey    string       `json:"essenceKey"`
	AttritionCost float64      `json:"attritionCost"`
	Targets       []wireTarget `json:"targets"`
}

func compiledPayloadSchema() (*jsonschema.Schema, error) {
	payloadSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(payloadSchemaURL, bytes.NewReader(payloadSchemaJSON)); err != nil {
			payloadSchemaErr = fmt.Errorf("add payload schema: %w", err)
			return
		}
		payloadSchema, payloadSchemaErr = compiler.Compile(payloadSchemaURL)
	})
	return payloadSchema, payloadSchemaErr
}

// Decode parses and validates a serialized payload. Every failure is a
// RESOLUTION_MALFORMED_PAYLOAD error; nothing is applied for such input.
func Decode(raw string) (Payload, error) {
	if strings.TrimSpace(raw) == "" {
		return Payload{}, malformed("payload is empty", nil)
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Payload{}, malformed("payload is not valid JSON", err)
	}
	if dec.More() {
		return Payload{}, malformed("payload is not valid JSON", fmt.Errorf("trailing data after payload"))
	}
	schema, err := compiledPayloadSchema()
	if err != nil {
		return Payload{}, fmt.Errorf("load payload schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return Payload{}, malformed(validationReason(err), err)
	}

	var wire wirePayload
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Payload{}, malformed("payload does not match the expected structure", err)
	}

	payload := Payload{
		PayloadID:     strings.TrimSpace(wire.PayloadID),
		AttackerRef:   strings.TrimSpace(string(wire.AttackerRef)),
		EssenceKey:    strings.TrimSpace(wire.EssenceKey),
		AttritionCost: wire.AttritionCost,
		Targets:       make([]Target, 0, len(wire.Targets)),
	}
	for _, target := range wire.Targets {
		payload.Targets = append(payload.Targets, Target{
			Ref:    strings.TrimSpace(string(target.Ref)),
			Damage: target.Damage,
		})
	}
	return payload, nil
}

// Encode serializes a payload in wire form.
func Encode(payload Payload) (string, error) {
	if payload.Targets == nil {
		payload.Targets = []Target{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// Fingerprint is the SHA-256 of the payload's canonical JSON, ignoring its id.
func Fingerprint(payload Payload) (string, error) {
	payload.PayloadID = ""
	if payload.Targets == nil {
		payload.Targets = []Target{}
	}
	return encoding.Digest(payload)
}

func validationReason(err error) string {
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		location := leaf.InstanceLocation
		if location == "" {
			location = "/"
		}
		return location + ": " + leaf.Message
	}
	return err.Error()
}

func malformed(reason string, cause error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodeResolutionMalformedPayload,
		"malformed resolution payload: "+reason,
		map[string]string{"Reason": reason},
		cause,
	)
}
