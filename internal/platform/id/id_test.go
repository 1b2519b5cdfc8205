package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func TestNewIDFormat(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if strings.Contains(id, "=") {
		t.Fatal("expected no padding")
	}
	if len(id) != 26 {
		t.Fatalf("expected 26-character id, got %d", len(id))
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			t.Fatalf("unexpected character %q in id", r)
		}
	}
}

func TestNewIDSetsUUIDVersionAndVariant(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}

	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if len(decoded) != 16 {
		t.Fatalf("expected 16 decoded bytes, got %d", len(decoded))
	}
	if version := decoded[6] >> 4; version != 4 {
		t.Fatalf("expected version 4, got %d", version)
	}
	if variant := decoded[8] & 0xC0; variant != 0x80 {
		t.Fatalf("expected variant 0x80, got 0x%X", variant)
	}
}

func TestNewPrefixedID(t *testing.T) {
	id, err := NewPrefixedID("payload_")
	if err != nil {
		t.Fatalf("new prefixed id: %v", err)
	}
	if !strings.HasPrefix(id, "payload_") {
		t.Fatalf("id = %q, want payload_ prefix", id)
	}
	if len(id) != len("payload_")+26 {
		t.Fatalf("id length = %d", len(id))
	}

	bare, err := NewPrefixedID(" ")
	if err != nil {
		t.Fatalf("new prefixed id: %v", err)
	}
	if len(bare) != 26 {
		t.Fatalf("expected bare id for blank prefix, got %q", bare)
	}
}
