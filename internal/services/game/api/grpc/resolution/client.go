package resolution

import (
	"context"
	"strings"

	domain "github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls ResolutionService over a gRPC connection.
type Client struct {
	conn   grpc.ClientConnInterface
	locale string
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// WithLocale returns a copy of the client that asks for localized errors.
func (c *Client) WithLocale(locale string) *Client {
	out := *c
	out.locale = strings.TrimSpace(locale)
	return &out
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.locale == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, LocaleHeader, c.locale)
}

// ApplyResolution sends a raw payload and returns the report.
func (c *Client) ApplyResolution(ctx context.Context, raw string) (domain.Report, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), methodApplyResolution, wrapperspb.String(raw), out); err != nil {
		return domain.Report{}, err
	}
	var report domain.Report
	if err := fromStruct(out, &report); err != nil {
		return domain.Report{}, err
	}
	return report, nil
}

// GetSheet fetches the derived sheet of ref.
func (c *Client) GetSheet(ctx context.Context, ref string) (narequenta.Sheet, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), methodGetSheet, wrapperspb.String(ref), out); err != nil {
		return narequenta.Sheet{}, err
	}
	var sheet narequenta.Sheet
	if err := fromStruct(out, &sheet); err != nil {
		return narequenta.Sheet{}, err
	}
	return sheet, nil
}

// GetRollData fetches the roll data map of ref.
func (c *Client) GetRollData(ctx context.Context, ref string) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), methodGetRollData, wrapperspb.String(ref), out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// PutEntity stores entity and returns its sheet.
func (c *Client) PutEntity(ctx context.Context, entity narequenta.Entity) (narequenta.Sheet, error) {
	in, err := toStruct(entity)
	if err != nil {
		return narequenta.Sheet{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), methodPutEntity, in, out); err != nil {
		return narequenta.Sheet{}, err
	}
	var sheet narequenta.Sheet
	if err := fromStruct(out, &sheet); err != nil {
		return narequenta.Sheet{}, err
	}
	return sheet, nil
}

// PutPlacement stores a placement.
func (c *Client) PutPlacement(ctx context.Context, placement narequenta.Placement) (narequenta.Placement, error) {
	in, err := toStruct(placement)
	if err != nil {
		return narequenta.Placement{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), methodPutPlacement, in, out); err != nil {
		return narequenta.Placement{}, err
	}
	var stored narequenta.Placement
	if err := fromStruct(out, &stored); err != nil {
		return narequenta.Placement{}, err
	}
	return stored, nil
}
