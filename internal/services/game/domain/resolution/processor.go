package resolution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
	"github.com/cortonemo/narequenta-vtt/internal/platform/id"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"

// Ledger claims payload ids before a resolution writes anything.
type Ledger interface {
	ClaimPayload(ctx context.Context, record storage.LedgerRecord) error
}

// Processor applies decoded payloads through a resolver and mutator.
type Processor struct {
	resolver storage.EntityResolver
	mutator  storage.EntityMutator
	ledger   Ledger
	rules    narequenta.Ruleset
	logger   *log.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() (string, error)
}

// Option configures a Processor.
type Option func(*Processor)

// WithLedger enables replay protection for stamped payloads.
func WithLedger(ledger Ledger) Option {
	return func(p *Processor) { p.ledger = ledger }
}

// WithRuleset sets the rules that name the defeated status.
func WithRuleset(rules narequenta.Ruleset) Option {
	return func(p *Processor) { p.rules = rules }
}

// WithLogger sets the logger soft failures are written to.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(p *Processor) {
		if provider != nil {
			p.tracer = provider.Tracer(tracerName)
		}
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator overrides how ids are minted for unstamped payloads.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(p *Processor) {
		if newID != nil {
			p.newID = newID
		}
	}
}

// NewProcessor builds a processor with default rules, no ledger, and the
// global tracer provider.
func NewProcessor(resolver storage.EntityResolver, mutator storage.EntityMutator, opts ...Option) *Processor {
	p := &Processor{
		resolver: resolver,
		mutator:  mutator,
		rules:    narequenta.DefaultRuleset(),
		logger:   log.New(os.Stderr, "", 0),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newID:    func() (string, error) { return id.NewPrefixedID("res") },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Resolve applies payload with a one-off processor.
func Resolve(ctx context.Context, payload Payload, resolver storage.EntityResolver, mutator storage.EntityMutator) (Report, error) {
	return NewProcessor(resolver, mutator).Resolve(ctx, payload)
}

// ResolveRaw decodes raw and applies it.
func (p *Processor) ResolveRaw(ctx context.Context, raw string) (Report, error) {
	payload, err := Decode(raw)
	if err != nil {
		return Report{}, err
	}
	return p.Resolve(ctx, payload)
}

// Resolve runs attrition, the target damage loop, and death transitions.
// The error return is reserved for failures before the first write: a replay
// of a claimed payload id or an unusable ledger.
func (p *Processor) Resolve(ctx context.Context, payload Payload) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.resolver == nil || p.mutator == nil {
		return Report{}, fmt.Errorf("resolver and mutator are required")
	}

	fingerprint, err := Fingerprint(payload)
	if err != nil {
		return Report{}, fmt.Errorf("fingerprint payload: %w", err)
	}
	report := Report{
		PayloadID:   payload.PayloadID,
		Fingerprint: fingerprint,
		Targets:     make([]TargetResult, 0, len(payload.Targets)),
		Defeated:    []string{},
		Warnings:    []Warning{},
		ResolvedAt:  p.now().UTC(),
	}
	stamped := report.PayloadID != ""
	if !stamped {
		minted, err := p.newID()
		if err != nil {
			return Report{}, fmt.Errorf("mint payload id: %w", err)
		}
		report.PayloadID = minted
	}

	ctx, span := p.tracer.Start(ctx, "resolution.Resolve", trace.WithAttributes(
		attribute.String("narequenta.payload_id", report.PayloadID),
		attribute.Bool("narequenta.payload_stamped", stamped),
		attribute.Int("narequenta.target_count", len(payload.Targets)),
	))
	defer span.End()

	if p.ledger != nil {
		err := p.ledger.ClaimPayload(ctx, storage.LedgerRecord{
			PayloadID:   report.PayloadID,
			Fingerprint: fingerprint,
			AppliedAt:   report.ResolvedAt,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "claim payload")
			if errors.Is(err, storage.ErrAlreadyApplied) {
				p.logger.Printf("resolution %s rejected: payload already applied", report.PayloadID)
				return Report{}, apperrors.WrapWithMetadata(
					apperrors.CodeResolutionPayloadReplayed,
					fmt.Sprintf("resolution payload %s already applied", report.PayloadID),
					map[string]string{"PayloadID": report.PayloadID},
					err,
				)
			}
			return Report{}, fmt.Errorf("claim payload %s: %w", report.PayloadID, err)
		}
	}

	// Once claimed, the batch runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	p.applyAttrition(ctx, payload, &report)
	for _, target := range payload.Targets {
		report.Targets = append(report.Targets, p.applyTarget(ctx, &report, target))
	}

	report.Completed = true
	span.SetAttributes(
		attribute.Int("narequenta.targets_damaged", report.TargetsDamaged),
		attribute.Int("narequenta.defeated", len(report.Defeated)),
		attribute.Bool("narequenta.attrition_applied", report.AttritionApplied),
		attribute.Int("narequenta.warnings", len(report.Warnings)),
	)
	return report, nil
}

func (p *Processor) applyAttrition(ctx context.Context, payload Payload, report *Report) {
	report.Attrition = Attrition{
		Ref:        payload.AttackerRef,
		EssenceKey: payload.EssenceKey,
		Cost:       payload.AttritionCost,
	}

	attacker, err := p.resolver.ResolveRef(ctx, payload.AttackerRef)
	if err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
		p.lookupFailed(report, payload.AttackerRef, err)
		return
	}
	if err != nil {
		p.warn(report, Warning{
			Kind:    WarningAttackerNotFound,
			Code:    apperrors.CodeResolutionTargetNotFound,
			Ref:     payload.AttackerRef,
			Message: fmt.Sprintf("attacker not found: %v", err),
		})
		return
	}
	report.Attrition.EntityID = attacker.ID

	essence, ok := attacker.Essences[payload.EssenceKey]
	if !ok {
		p.warn(report, Warning{
			Kind:     WarningAttackerEssenceMissing,
			Code:     apperrors.CodeEssenceNotFound,
			Ref:      payload.AttackerRef,
			EntityID: attacker.ID,
			Message:  fmt.Sprintf("attacker has no essence %q", payload.EssenceKey),
		})
		return
	}

	next := math.Max(0, essence.Value-payload.AttritionCost)
	report.Attrition.Before = essence.Value
	report.Attrition.After = next

	path := storage.EssenceValuePath(payload.EssenceKey)
	if err := p.mutator.UpdateField(ctx, attacker.ID, path, next); err != nil {
		p.mutationFailed(report, payload.AttackerRef, attacker.ID, path, err)
		return
	}
	report.Attrition.Applied = true
	report.AttritionApplied = true
}

func (p *Processor) applyTarget(ctx context.Context, report *Report, target Target) TargetResult {
	result := TargetResult{Ref: target.Ref, Damage: target.Damage}

	ctx, span := p.tracer.Start(ctx, "resolution.Target", trace.WithAttributes(
		attribute.String("narequenta.ref", target.Ref),
		attribute.Float64("narequenta.damage", target.Damage),
	))
	defer span.End()

	entity, err := p.resolver.ResolveRef(ctx, target.Ref)
	if err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
		p.lookupFailed(report, target.Ref, err)
		span.RecordError(err)
		return result
	}
	if err != nil {
		p.warn(report, Warning{
			Kind:    WarningTargetNotFound,
			Code:    apperrors.CodeResolutionTargetNotFound,
			Ref:     target.Ref,
			Message: fmt.Sprintf("target not found: %v", err),
		})
		span.SetAttributes(attribute.Bool("narequenta.found", false))
		return result
	}
	result.Found = true
	result.EntityID = entity.ID
	span.SetAttributes(attribute.String("narequenta.entity_id", entity.ID))

	currentHP := 0.0
	if entity.Resources != nil && !math.IsNaN(entity.Resources.HP.Value) {
		currentHP = entity.Resources.HP.Value
	}
	newHP := math.Max(0, currentHP-target.Damage)
	result.HPBefore = currentHP
	result.HPAfter = newHP

	if err := p.mutator.UpdateField(ctx, entity.ID, storage.HPValuePath, newHP); err != nil {
		p.mutationFailed(report, target.Ref, entity.ID, storage.HPValuePath, err)
		span.RecordError(err)
		result.HPAfter = currentHP
		return result
	}
	result.Damaged = true
	report.TargetsDamaged++

	if newHP > 0 {
		return result
	}

	defeated := p.rules.DefeatedStatus()
	already, err := p.mutator.HasStatus(ctx, entity.ID, defeated)
	if err != nil {
		p.mutationFailed(report, target.Ref, entity.ID, "statuses."+defeated, err)
		span.RecordError(err)
		return result
	}
	if already {
		result.AlreadyDefeated = true
		return result
	}
	if err := p.mutator.ApplyStatus(ctx, entity.ID, defeated, storage.StatusOptions{Overlay: true}); err != nil {
		p.mutationFailed(report, target.Ref, entity.ID, "statuses."+defeated, err)
		span.RecordError(err)
		return result
	}
	result.Defeated = true
	report.Defeated = append(report.Defeated, entity.ID)
	span.SetAttributes(attribute.Bool("narequenta.defeated", true))
	return result
}

func (p *Processor) mutationFailed(report *Report, ref, entityID, path string, err error) {
	p.warn(report, Warning{
		Kind:     WarningMutationFailed,
		Code:     apperrors.CodeResolutionMutationFailed,
		Ref:      ref,
		EntityID: entityID,
		Path:     path,
		Message:  fmt.Sprintf("update %s failed: %v", path, err),
	})
}

func (p *Processor) lookupFailed(report *Report, ref string, err error) {
	p.warn(report, Warning{
		Kind:    WarningLookupFailed,
		Code:    apperrors.CodeResolutionMutationFailed,
		Ref:     ref,
		Message: fmt.Sprintf("lookup failed: %v", err),
	})
}

func (p *Processor) warn(report *Report, warning Warning) {
	report.Warnings = append(report.Warnings, warning)
	p.logger.Printf("resolution %s: %s ref=%q: %s", report.PayloadID, warning.Kind, warning.Ref, warning.Message)
}
