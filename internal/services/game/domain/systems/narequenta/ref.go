package narequenta

import (
	"fmt"
	"strings"
)

// RefKind says what a reference names.
type RefKind int

const (
	// RefAny is a bare id: an entity id first, then a placement id.
	RefAny RefKind = iota
	RefEntity
	RefPlacement
)

const (
	entityRefPrefix    = "entity:"
	placementRefPrefix = "placement:"
)

// Ref is a parsed entity or placement reference.
type Ref struct {
	Kind RefKind
	ID   string
}

// ParseRef parses "entity:<id>", "placement:<id>" or a bare id.
func ParseRef(raw string) (Ref, error) {
	trimmed := strings.TrimSpace(raw)
	ref := Ref{Kind: RefAny, ID: trimmed}
	switch {
	case strings.HasPrefix(trimmed, entityRefPrefix):
		ref = Ref{Kind: RefEntity, ID: strings.TrimSpace(strings.TrimPrefix(trimmed, entityRefPrefix))}
	case strings.HasPrefix(trimmed, placementRefPrefix):
		ref = Ref{Kind: RefPlacement, ID: strings.TrimSpace(strings.TrimPrefix(trimmed, placementRefPrefix))}
	}
	if ref.ID == "" {
		return Ref{}, fmt.Errorf("reference %q has no id", raw)
	}
	return ref, nil
}

func (r Ref) String() string {
	switch r.Kind {
	case RefEntity:
		return entityRefPrefix + r.ID
	case RefPlacement:
		return placementRefPrefix + r.ID
	default:
		return r.ID
	}
}
