// Package id mints opaque identifiers for entities, placements and payloads.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random UUIDv4 rendered as 26 lowercase base32 characters.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// NewPrefixedID returns NewID with a kind prefix, e.g. "payload_abc...".
func NewPrefixedID(prefix string) (string, error) {
	raw, err := NewID()
	if err != nil {
		return "", err
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "_")
	if prefix == "" {
		return raw, nil
	}
	return prefix + "_" + raw, nil
}
