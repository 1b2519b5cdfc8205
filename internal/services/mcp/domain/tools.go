package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortonemo/narequenta-vtt/internal/platform/timeouts"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GameClient is the game service surface the tools call.
type GameClient interface {
	ApplyResolution(ctx context.Context, raw string) (resolution.Report, error)
	GetSheet(ctx context.Context, ref string) (narequenta.Sheet, error)
	GetRollData(ctx context.Context, ref string) (map[string]any, error)
	PutEntity(ctx context.Context, entity narequenta.Entity) (narequenta.Sheet, error)
}

// EssenceDeriveInput asks for tiers of a set of essences without touching
// stored state.
type EssenceDeriveInput struct {
	Kind     string         `json:"kind,omitempty" jsonschema:"entity kind; character also derives action surges"`
	Essences []EssenceInput `json:"essences" jsonschema:"essence pools to derive"`
}

// EssenceDeriveTool defines the pure derivation tool.
func EssenceDeriveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "essence_derive",
		Description: "Derives tiers, damage dice and mitigation from essence maximums without storing anything",
	}
}

// EssenceDeriveHandler derives a sheet locally.
func EssenceDeriveHandler() mcp.ToolHandlerFor[EssenceDeriveInput, SheetResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input EssenceDeriveInput) (*mcp.CallToolResult, SheetResult, error) {
		kind, err := narequenta.ParseKind(input.Kind)
		if err != nil {
			return nil, SheetResult{}, err
		}
		entity := narequenta.Entity{
			ID:        "preview",
			Kind:      kind,
			Essences:  essencesFromInput(input.Essences),
			Resources: &narequenta.Resources{},
		}
		if err := entity.Validate(); err != nil {
			return nil, SheetResult{}, err
		}
		return nil, sheetResult(narequenta.DeriveEntity(entity)), nil
	}
}

// ResolutionApplyInput carries a raw resolution payload.
type ResolutionApplyInput struct {
	Payload string `json:"payload" jsonschema:"resolution payload JSON: attackerRef, essenceKey, attritionCost, targets[{ref, damage}], optional payloadId"`
}

// ResolutionApplyTool defines the batch resolution tool.
func ResolutionApplyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "resolution_apply",
		Description: "Applies attrition to the attacker and damage to every target, marking targets at zero hit points as defeated",
	}
}

// ResolutionApplyHandler sends the payload to the game service.
func ResolutionApplyHandler(client GameClient) mcp.ToolHandlerFor[ResolutionApplyInput, ReportResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResolutionApplyInput) (*mcp.CallToolResult, ReportResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
		defer cancel()
		report, err := client.ApplyResolution(callCtx, input.Payload)
		if err != nil {
			return nil, ReportResult{}, fmt.Errorf("apply resolution failed: %w", err)
		}
		return nil, reportResult(report), nil
	}
}

// RefInput names an entity or placement.
type RefInput struct {
	Ref string `json:"ref" jsonschema:"entity:<id>, placement:<id>, or a bare id"`
}

// SheetGetTool defines the sheet lookup tool.
func SheetGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sheet_get",
		Description: "Returns the derived sheet of a stored entity or placement",
	}
}

// SheetGetHandler fetches a sheet from the game service.
func SheetGetHandler(client GameClient) mcp.ToolHandlerFor[RefInput, SheetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RefInput) (*mcp.CallToolResult, SheetResult, error) {
		ref := strings.TrimSpace(input.Ref)
		if ref == "" {
			return nil, SheetResult{}, fmt.Errorf("ref is required")
		}
		callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
		defer cancel()
		sheet, err := client.GetSheet(callCtx, ref)
		if err != nil {
			return nil, SheetResult{}, fmt.Errorf("get sheet failed: %w", err)
		}
		return nil, sheetResult(sheet), nil
	}
}

// RollDataResult is the roll data map of an entity.
type RollDataResult struct {
	Ref        string         `json:"ref" jsonschema:"requested reference"`
	Initiative string         `json:"initiative,omitempty" jsonschema:"initiative roll expression"`
	Data       map[string]any `json:"data" jsonschema:"roll data with essences, resources, tier and shorthand aliases"`
}

// RollDataGetTool defines the roll data tool.
func RollDataGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_data_get",
		Description: "Returns the dice formula roll data of a stored entity or placement",
	}
}

// RollDataGetHandler fetches roll data from the game service.
func RollDataGetHandler(client GameClient) mcp.ToolHandlerFor[RefInput, RollDataResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RefInput) (*mcp.CallToolResult, RollDataResult, error) {
		ref := strings.TrimSpace(input.Ref)
		if ref == "" {
			return nil, RollDataResult{}, fmt.Errorf("ref is required")
		}
		callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
		defer cancel()
		data, err := client.GetRollData(callCtx, ref)
		if err != nil {
			return nil, RollDataResult{}, fmt.Errorf("get roll data failed: %w", err)
		}
		result := RollDataResult{Ref: ref, Data: data}
		if initiative, ok := data["initiative"].(string); ok {
			result.Initiative = initiative
			delete(data, "initiative")
		}
		return nil, result, nil
	}
}

// EntityPutInput describes an entity to store.
type EntityPutInput struct {
	ID           string         `json:"id" jsonschema:"entity identifier"`
	Name         string         `json:"name,omitempty" jsonschema:"display name"`
	Kind         string         `json:"kind,omitempty" jsonschema:"character (default), npc, or another kind"`
	Essences     []EssenceInput `json:"essences,omitempty" jsonschema:"essence pools"`
	HP           *ResourceInput `json:"hp,omitempty" jsonschema:"hit points"`
	ActionSurges *ResourceInput `json:"action_surges,omitempty" jsonschema:"action surges"`
	Statuses     []string       `json:"statuses,omitempty" jsonschema:"active statuses"`
}

// EntityPutTool defines the entity upsert tool.
func EntityPutTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "entity_put",
		Description: "Creates or replaces an entity and returns its derived sheet",
	}
}

// EntityPutHandler stores an entity through the game service.
func EntityPutHandler(client GameClient) mcp.ToolHandlerFor[EntityPutInput, SheetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntityPutInput) (*mcp.CallToolResult, SheetResult, error) {
		entity := narequenta.Entity{
			ID:       strings.TrimSpace(input.ID),
			Name:     input.Name,
			Kind:     narequenta.Kind(input.Kind),
			Essences: essencesFromInput(input.Essences),
			Statuses: input.Statuses,
		}
		if input.HP != nil || input.ActionSurges != nil {
			entity.Resources = &narequenta.Resources{}
			if input.HP != nil {
				entity.Resources.HP = narequenta.Resource{Value: input.HP.Value, Max: input.HP.Max}
			}
			if input.ActionSurges != nil {
				entity.Resources.ActionSurges = narequenta.Resource{Value: input.ActionSurges.Value, Max: input.ActionSurges.Max}
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
		defer cancel()
		sheet, err := client.PutEntity(callCtx, entity)
		if err != nil {
			return nil, SheetResult{}, fmt.Errorf("put entity failed: %w", err)
		}
		return nil, sheetResult(sheet), nil
	}
}
