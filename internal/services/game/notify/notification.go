package notify

import (
	"errors"
	"strings"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
	"github.com/cortonemo/narequenta-vtt/internal/platform/i18n/catalog"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind names the category of a notification.
type Kind string

const (
	KindParseError             Kind = "parse_error"
	KindAttackerNotFound       Kind = "attacker_not_found"
	KindAttackerEssenceMissing Kind = "attacker_essence_missing"
	KindTargetNotFound         Kind = "target_not_found"
	KindMutationFailed         Kind = "mutation_failed"
	KindLookupFailed           Kind = "lookup_failed"
	KindAttritionApplied       Kind = "attrition_applied"
	KindDamageSummary          Kind = "damage_summary"
	KindReplayRejected         Kind = "replay_rejected"
	KindResolutionFailed       Kind = "resolution_failed"
)

// Level is the severity shown to the user.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one user-facing message about a resolution.
type Notification struct {
	Kind      Kind   `json:"kind"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	PayloadID string `json:"payloadId,omitempty"`
}

const keyPrefix = "notifications."

var defaultTag = language.AmericanEnglish

// NewPrinter returns a printer for locale backed by the embedded catalog.
// Unknown or empty locales fall back to en-US.
func NewPrinter(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil || !catalog.Default().HasLocale(tag.String()) {
		tag = defaultTag
	}
	return message.NewPrinter(tag)
}

func printerOrDefault(p *message.Printer) *message.Printer {
	if p == nil {
		return NewPrinter("")
	}
	return p
}

func render(p *message.Printer, kind Kind, args ...any) string {
	return p.Sprintf(keyPrefix+string(kind), args...)
}

// FromReport builds the notifications for a completed resolution: one per
// warning, one for attrition when it was charged, and a final damage summary.
func FromReport(report resolution.Report, p *message.Printer) []Notification {
	p = printerOrDefault(p)
	out := make([]Notification, 0, len(report.Warnings)+2)
	add := func(kind Kind, level Level, msg string) {
		out = append(out, Notification{Kind: kind, Level: level, Message: msg, PayloadID: report.PayloadID})
	}

	for _, warning := range report.Warnings {
		switch warning.Kind {
		case resolution.WarningAttackerNotFound:
			add(KindAttackerNotFound, LevelWarning, render(p, KindAttackerNotFound, warning.Ref))
		case resolution.WarningAttackerEssenceMissing:
			add(KindAttackerEssenceMissing, LevelWarning, render(p, KindAttackerEssenceMissing, warning.Ref, report.Attrition.EssenceKey))
		case resolution.WarningTargetNotFound:
			add(KindTargetNotFound, LevelWarning, render(p, KindTargetNotFound, warning.Ref))
		case resolution.WarningMutationFailed:
			subject := warning.EntityID
			if subject == "" {
				subject = warning.Ref
			}
			add(KindMutationFailed, LevelError, render(p, KindMutationFailed, warning.Path, subject))
		case resolution.WarningLookupFailed:
			add(KindLookupFailed, LevelError, render(p, KindLookupFailed, warning.Ref))
		}
	}

	if report.AttritionApplied {
		a := report.Attrition
		add(KindAttritionApplied, LevelInfo, render(p, KindAttritionApplied, a.Ref, a.Cost, a.EssenceKey, a.After))
	}
	add(KindDamageSummary, LevelInfo, render(p, KindDamageSummary, report.TargetsDamaged, len(report.Targets), len(report.Defeated)))
	return out
}

// FromError builds the notification for a resolution that was rejected before
// any write.
func FromError(err error, p *message.Printer) Notification {
	p = printerOrDefault(p)
	metadata := apperrors.GetMetadata(err)
	switch apperrors.GetCode(err) {
	case apperrors.CodeResolutionMalformedPayload:
		reason := metadata["Reason"]
		if reason == "" {
			reason = err.Error()
		}
		return Notification{Kind: KindParseError, Level: LevelError, Message: render(p, KindParseError, reason)}
	case apperrors.CodeResolutionPayloadReplayed:
		payloadID := metadata["PayloadID"]
		return Notification{
			Kind:      KindReplayRejected,
			Level:     LevelWarning,
			Message:   render(p, KindReplayRejected, payloadID),
			PayloadID: payloadID,
		}
	}
	msg := "resolution failed"
	if err != nil {
		msg = err.Error()
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
	}
	return Notification{Kind: KindResolutionFailed, Level: LevelError, Message: msg}
}
