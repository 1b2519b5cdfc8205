package resolution

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
	domain "github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// LocaleHeader selects the locale of error messages.
const LocaleHeader = "x-narequenta-locale"

// Store is the storage surface the service needs.
type Store interface {
	storage.EntityStore
	storage.PlacementStore
	storage.EntityResolver
}

// Journal archives applied resolutions.
type Journal interface {
	Append(ctx context.Context, payload domain.Payload, report domain.Report) error
}

// Notifier publishes resolution outcomes to subscribers.
type Notifier interface {
	PublishReport(report domain.Report)
	PublishError(err error)
}

// Service implements ResolutionServiceServer.
type Service struct {
	store     Store
	processor *domain.Processor
	rules     narequenta.Ruleset
	journal   Journal
	notifier  Notifier
	logger    *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithJournal archives every applied resolution.
func WithJournal(journal Journal) Option {
	return func(s *Service) { s.journal = journal }
}

// WithNotifier publishes outcomes after each resolution.
func WithNotifier(notifier Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithRuleset sets the rules used for roll data.
func WithRuleset(rules narequenta.Ruleset) Option {
	return func(s *Service) { s.rules = rules }
}

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService builds the gRPC service around a store and processor.
func NewService(store Store, processor *domain.Processor, opts ...Option) *Service {
	s := &Service{
		store:     store,
		processor: processor,
		rules:     narequenta.DefaultRuleset(),
		logger:    log.New(os.Stderr, "", 0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ApplyResolution decodes and applies a raw payload.
func (s *Service) ApplyResolution(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	payload, err := domain.Decode(in.GetValue())
	if err != nil {
		s.publishError(err)
		return nil, apperrors.HandleError(err, localeFrom(ctx))
	}
	report, err := s.processor.Resolve(ctx, payload)
	if err != nil {
		s.publishError(err)
		return nil, s.handle(ctx, err)
	}
	if s.journal != nil {
		if err := s.journal.Append(ctx, payload, report); err != nil {
			s.logger.Printf("journal resolution %s: %v", report.PayloadID, err)
		}
	}
	if s.notifier != nil {
		s.notifier.PublishReport(report)
	}
	return toStruct(report)
}

// GetSheet returns the derived sheet of a referenced entity.
func (s *Service) GetSheet(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	entity, err := s.store.ResolveRef(ctx, in.GetValue())
	if err != nil {
		return nil, s.handle(ctx, err)
	}
	return toStruct(narequenta.DeriveEntity(entity))
}

// GetRollData returns the roll data map of a referenced entity.
func (s *Service) GetRollData(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	entity, err := s.store.ResolveRef(ctx, in.GetValue())
	if err != nil {
		return nil, s.handle(ctx, err)
	}
	sheet := narequenta.DeriveEntity(entity)
	data := narequenta.RollData(sheet, s.rules)
	data["initiative"] = narequenta.Initiative(sheet, s.rules).Expression()
	return toStruct(data)
}

// PutEntity stores an entity and returns its derived sheet.
func (s *Service) PutEntity(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var entity narequenta.Entity
	if err := fromStruct(in, &entity); err != nil {
		return nil, s.handle(ctx, apperrors.Wrap(apperrors.CodeEntityInvalidEssence, "entity could not be decoded", err))
	}
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return nil, s.handle(ctx, err)
	}
	stored, err := s.store.GetEntity(ctx, strings.TrimSpace(entity.ID))
	if err != nil {
		return nil, s.handle(ctx, err)
	}
	return toStruct(narequenta.DeriveEntity(stored))
}

// PutPlacement stores a placement of an existing entity.
func (s *Service) PutPlacement(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var placement narequenta.Placement
	if err := fromStruct(in, &placement); err != nil {
		return nil, s.handle(ctx, apperrors.Wrap(apperrors.CodeEntityEmptyID, "placement could not be decoded", err))
	}
	if strings.TrimSpace(placement.ID) == "" {
		return nil, s.handle(ctx, apperrors.New(apperrors.CodeEntityEmptyID, "placement id is required"))
	}
	if err := s.store.PutPlacement(ctx, placement); err != nil {
		return nil, s.handle(ctx, err)
	}
	return toStruct(placement)
}

func (s *Service) publishError(err error) {
	if s.notifier != nil {
		s.notifier.PublishError(err)
	}
}

func (s *Service) handle(ctx context.Context, err error) error {
	if apperrors.GetCode(err) == apperrors.CodeUnknown {
		s.logger.Printf("resolution service: %v", err)
		err = apperrors.Wrap(apperrors.CodeUnknown, fmt.Sprintf("internal error: %v", err), err)
	}
	return apperrors.HandleError(err, localeFrom(ctx))
}

func localeFrom(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return apperrors.DefaultLocale
	}
	values := md.Get(LocaleHeader)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return apperrors.DefaultLocale
	}
	return strings.TrimSpace(values[0])
}
