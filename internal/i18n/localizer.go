package i18n

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/analysis"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

// Localizer renders messages in one language.
type Localizer struct {
	tag language.Tag
	p   *message.Printer
}

func New(locale string) *Localizer {
	tag := Tag(locale)
	return &Localizer{tag: tag, p: printer(tag)}
}

func (l *Localizer) Tag() language.Tag { return l.tag }

// Message renders a catalog key with arguments.
func (l *Localizer) Message(key string, args ...interface{}) string {
	return l.p.Sprintf(key, args...)
}

// FieldLabel names a field. Parameter fields use the parameter id, which
// operators read on the instruments.
func (l *Localizer) FieldLabel(field string) string {
	if id, ok := strings.CutPrefix(field, "parameters."); ok {
		return id
	}
	return l.p.Sprintf("field." + field)
}

func (l *Localizer) FieldError(fe *validation.FieldError) string {
	return l.p.Sprintf("validation."+string(fe.Code), l.FieldLabel(fe.Field), fe.Limit)
}

// Recommendation renders an alert recommendation code.
func (l *Localizer) Recommendation(code string) string {
	return l.p.Sprintf("recommend." + code)
}

type GlobalText struct {
	Type        analysis.RecommendationType `json:"type"`
	Title       string                      `json:"title"`
	Description string                      `json:"description"`
	Action      string                      `json:"action"`
}

func (l *Localizer) Global(r analysis.Recommendation) GlobalText {
	prefix := "global." + string(r.Type)
	return GlobalText{
		Type:        r.Type,
		Title:       l.p.Sprintf(prefix + ".title"),
		Description: l.p.Sprintf(prefix+".description", r.Count),
		Action:      l.p.Sprintf(prefix + ".action"),
	}
}

// Error renders any error the core returns.
func (l *Localizer) Error(err error) string {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = l.FieldError(fe)
		}
		return l.p.Sprintf("validation.failed", strings.Join(msgs, "، "))
	}
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return l.FieldError(fe)
	}

	var storageErr *domain.StorageError
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		return l.p.Sprintf("error.sync_in_progress")
	case errors.Is(err, domain.ErrNotFound):
		return l.p.Sprintf("error.not_found")
	case errors.As(err, &storageErr):
		return l.p.Sprintf("error.storage")
	}
	if kind := domain.RemoteKind(err); kind != "" {
		return l.p.Sprintf("remote." + string(kind))
	}
	return l.p.Sprintf("error.unknown")
}
