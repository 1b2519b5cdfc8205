package resolution

import (
	"strings"
	"testing"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
)

func TestDecodeWirePayload(t *testing.T) {
	payload, err := Decode(`{
	  "payloadId": "res-7",
	  "attackerRef": "hero",
	  "essenceKey": "vitalis",
	  "attritionCost": 20,
	  "targets": [{"ref": "placement:tok-1", "damage": 15}, {"ref": 42, "damage": 3.5}]
	}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.PayloadID != "res-7" || payload.AttackerRef != "hero" || payload.EssenceKey != "vitalis" {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.AttritionCost != 20 {
		t.Fatalf("attrition cost = %v, want 20", payload.AttritionCost)
	}
	if len(payload.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(payload.Targets))
	}
	if payload.Targets[1] != (Target{Ref: "42", Damage: 3.5}) {
		t.Fatalf("numeric ref target = %+v", payload.Targets[1])
	}
}

func TestDecodeKeepsLargeNumericRefs(t *testing.T) {
	payload, err := Decode(`{"attackerRef":9007199254740993,"essenceKey":"vitalis","attritionCost":0}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.AttackerRef != "9007199254740993" {
		t.Fatalf("attacker ref = %q, want 9007199254740993", payload.AttackerRef)
	}
}

func TestDecodeAbsentTargetsMeansNone(t *testing.T) {
	for _, raw := range []string{
		`{"attackerRef":"hero","essenceKey":"vitalis","attritionCost":5}`,
		`{"attackerRef":"hero","essenceKey":"vitalis","attritionCost":5,"targets":null}`,
	} {
		payload, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if len(payload.Targets) != 0 {
			t.Fatalf("targets = %v, want none", payload.Targets)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"not json", "attack goblin"},
		{"truncated", `{"attackerRef":"hero"`},
		{"trailing document", `{"attackerRef":"hero","essenceKey":"vitalis","attritionCost":5} {}`},
		{"array", `[1,2]`},
		{"missing attacker", `{"essenceKey":"vitalis","attritionCost":5}`},
		{"missing essence key", `{"attackerRef":"hero","attritionCost":5}`},
		{"string cost", `{"attackerRef":"hero","essenceKey":"vitalis","attritionCost":"20"}`},
		{"negative cost", `{"attackerRef":"hero","essenceKey":"vitalis","attritionCost":-1}`},
		{"targets not array", `{"attackerRef":"hero","essenceKey":"vitalis","targets":{"ref":"a"}}`},
		{"boolean ref", `{"attackerRef":"hero","essenceKey":"vitalis","targets":[{"ref":true,"damage":1}]}`},
		{"negative damage", `{"attackerRef":"hero","essenceKey":"vitalis","targets":[{"ref":"a","damage":-3}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			if !apperrors.IsCode(err, apperrors.CodeResolutionMalformedPayload) {
				t.Fatalf("error = %v, want %s", err, apperrors.CodeResolutionMalformedPayload)
			}
			if apperrors.GetMetadata(err)["Reason"] == "" {
				t.Fatal("expected a reason in metadata")
			}
		})
	}
}

func TestEncodeDecodeKeepsPayload(t *testing.T) {
	original := Payload{
		PayloadID:     "res-1",
		AttackerRef:   "hero",
		EssenceKey:    "motus",
		AttritionCost: 12.5,
		Targets:       []Target{{Ref: "goblin", Damage: 4}},
	}
	raw, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(raw, `"payloadId":"res-1"`) {
		t.Fatalf("raw = %s", raw)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AttackerRef != original.AttackerRef || decoded.Targets[0] != original.Targets[0] {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestFingerprintIgnoresPayloadID(t *testing.T) {
	a := Payload{PayloadID: "one", AttackerRef: "hero", EssenceKey: "vitalis", AttritionCost: 5}
	b := a
	b.PayloadID = "two"
	b.Targets = []Target{}

	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("fingerprint a: %v", err)
	}
	fb, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("fingerprint b: %v", err)
	}
	if fa != fb {
		t.Fatalf("fingerprints differ: %s vs %s", fa, fb)
	}

	b.AttritionCost = 6
	fc, _ := Fingerprint(b)
	if fc == fa {
		t.Fatal("expected cost change to alter fingerprint")
	}
}
