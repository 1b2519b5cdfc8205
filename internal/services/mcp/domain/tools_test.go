package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
)

type fakeGameClient struct {
	raw      string
	put      narequenta.Entity
	report   resolution.Report
	sheet    narequenta.Sheet
	rollData map[string]any
	err      error
}

func (f *fakeGameClient) ApplyResolution(_ context.Context, raw string) (resolution.Report, error) {
	f.raw = raw
	return f.report, f.err
}

func (f *fakeGameClient) GetSheet(context.Context, string) (narequenta.Sheet, error) {
	return f.sheet, f.err
}

func (f *fakeGameClient) GetRollData(context.Context, string) (map[string]any, error) {
	return f.rollData, f.err
}

func (f *fakeGameClient) PutEntity(_ context.Context, entity narequenta.Entity) (narequenta.Sheet, error) {
	f.put = entity
	return narequenta.DeriveEntity(entity), f.err
}

func TestEssenceDeriveHandler(t *testing.T) {
	handler := EssenceDeriveHandler()
	_, result, err := handler(context.Background(), nil, EssenceDeriveInput{
		Essences: []EssenceInput{{Key: "vitalis", Value: 40, Max: 65}, {Key: "motus", Value: 10, Max: 45}},
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if result.Tier != 5 || len(result.Essences) != 2 {
		t.Fatalf("result = %+v", result)
	}
	motus, vitalis := result.Essences[0], result.Essences[1]
	if motus.Key != "motus" || motus.Max != 50 || motus.Dice != "5d10" || motus.Mitigation != 27.5 {
		t.Fatalf("motus = %+v", motus)
	}
	if vitalis.Tier != 3 || vitalis.Mitigation != 16.5 {
		t.Fatalf("vitalis = %+v", vitalis)
	}
	if result.ActionSurges == nil || result.ActionSurges.Max != 5 {
		t.Fatalf("action surges = %+v", result.ActionSurges)
	}
}

func TestEssenceDeriveHandlerRejectsBadInput(t *testing.T) {
	handler := EssenceDeriveHandler()
	if _, _, err := handler(context.Background(), nil, EssenceDeriveInput{Kind: "bad kind!"}); err == nil {
		t.Fatal("expected kind error")
	}
	if _, _, err := handler(context.Background(), nil, EssenceDeriveInput{Essences: []EssenceInput{{Key: " ", Max: 60}}}); err == nil {
		t.Fatal("expected essence error")
	}
}

func TestResolutionApplyHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakeGameClient{report: resolution.Report{
			PayloadID:      "res-1",
			Targets:        []resolution.TargetResult{{Ref: "goblin", Found: true, HPBefore: 5, HPAfter: 0, Defeated: true}},
			TargetsDamaged: 1,
			Defeated:       []string{"goblin"},
			Warnings:       []resolution.Warning{{Kind: resolution.WarningTargetNotFound, Ref: "ghost"}},
			Completed:      true,
		}}
		_, result, err := ResolutionApplyHandler(client)(context.Background(), nil, ResolutionApplyInput{Payload: `{"x":1}`})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if client.raw != `{"x":1}` {
			t.Fatalf("raw = %q", client.raw)
		}
		if result.PayloadID != "res-1" || !result.Targets[0].Defeated || result.Warnings[0].Kind != "target_not_found" {
			t.Fatalf("result = %+v", result)
		}
	})

	t.Run("gRPC error", func(t *testing.T) {
		client := &fakeGameClient{err: errors.New("connection refused")}
		if _, _, err := ResolutionApplyHandler(client)(context.Background(), nil, ResolutionApplyInput{}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestSheetAndRollDataRequireRef(t *testing.T) {
	client := &fakeGameClient{}
	if _, _, err := SheetGetHandler(client)(context.Background(), nil, RefInput{Ref: " "}); err == nil {
		t.Fatal("expected sheet ref error")
	}
	if _, _, err := RollDataGetHandler(client)(context.Background(), nil, RefInput{}); err == nil {
		t.Fatal("expected roll data ref error")
	}
}

func TestRollDataGetHandlerSplitsInitiative(t *testing.T) {
	client := &fakeGameClient{rollData: map[string]any{"tier": 3.0, "initiative": "1d20 + 0.40"}}
	_, result, err := RollDataGetHandler(client)(context.Background(), nil, RefInput{Ref: "hero"})
	if err != nil {
		t.Fatalf("roll data: %v", err)
	}
	if result.Initiative != "1d20 + 0.40" {
		t.Fatalf("initiative = %q", result.Initiative)
	}
	if _, ok := result.Data["initiative"]; ok {
		t.Fatal("expected initiative removed from data")
	}
}

func TestEntityPutHandlerBuildsEntity(t *testing.T) {
	client := &fakeGameClient{}
	_, result, err := EntityPutHandler(client)(context.Background(), nil, EntityPutInput{
		ID:       " goblin ",
		Kind:     "npc",
		Essences: []EssenceInput{{Key: "vitalis", Value: 20, Max: 55}},
		HP:       &ResourceInput{Value: 7, Max: 7},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if client.put.ID != "goblin" || client.put.Resources.HP.Max != 7 {
		t.Fatalf("entity = %+v", client.put)
	}
	if result.HP == nil || result.HP.Value != 7 || result.Tier != 4 {
		t.Fatalf("result = %+v", result)
	}
}
