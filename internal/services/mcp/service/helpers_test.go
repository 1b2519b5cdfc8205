package service

import (
	"context"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
)

type staticClient struct{}

func (staticClient) ApplyResolution(context.Context, string) (resolution.Report, error) {
	return resolution.Report{Completed: true}, nil
}

func (staticClient) GetSheet(context.Context, string) (narequenta.Sheet, error) {
	return narequenta.Sheet{}, nil
}

func (staticClient) GetRollData(context.Context, string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (staticClient) PutEntity(_ context.Context, entity narequenta.Entity) (narequenta.Sheet, error) {
	return narequenta.DeriveEntity(entity), nil
}
