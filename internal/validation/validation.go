// Package validation checks measurement records against the catalog and
// collects every violation so the operator can fix them in one pass.
package validation

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

type Code string

const (
	CodeRequired      Code = "required"
	CodeInvalid       Code = "invalid"
	CodeNotInUnit     Code = "not_in_unit"
	CodeFutureDate    Code = "future_date"
	CodeTooOld        Code = "too_old"
	CodeTooLong       Code = "too_long"
	CodeNegative      Code = "negative"
	CodeDecimalPlaces Code = "decimal_places"
	CodeMaxValue      Code = "max_value"
	CodeOutOfRange    Code = "out_of_range"
)

// FieldError is a single violation tagged with the offending field.
type FieldError struct {
	Field string  `json:"field"`
	Code  Code    `json:"code"`
	Limit float64 `json:"limit,omitempty"`
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Field)
	b.WriteString(": ")
	b.WriteString(string(e.Code))
	if e.Limit != 0 {
		b.WriteString(" (limit ")
		b.WriteString(strconv.FormatFloat(e.Limit, 'f', -1, 64))
		b.WriteString(")")
	}
	return b.String()
}

// Errors is the full list of violations for one record.
type Errors []*FieldError

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

// Has reports whether a violation with the given field and code is present.
func (es Errors) Has(field string, code Code) bool {
	for _, e := range es {
		if e.Field == field && e.Code == code {
			return true
		}
	}
	return false
}

func (es *Errors) add(field string, code Code, limit float64) {
	*es = append(*es, &FieldError{Field: field, Code: code, Limit: limit})
}

// Record validates r as of now. It returns nil or an Errors value.
func Record(r *domain.MeasurementRecord, now time.Time) error {
	var errs Errors

	switch {
	case r.Unit == "":
		errs.add("unit", CodeRequired, 0)
	case !r.Unit.Valid():
		errs.add("unit", CodeInvalid, 0)
	}

	switch {
	case r.Equipment == "":
		errs.add("equipment", CodeRequired, 0)
	case !knownEquipment(r.Equipment):
		errs.add("equipment", CodeInvalid, 0)
	case r.Unit.Valid() && !domain.EquipmentInUnit(r.Unit, r.Equipment):
		errs.add("equipment", CodeNotInUnit, 0)
	}

	checkDate(&errs, r.Date, now)

	if len([]rune(r.Notes)) > domain.MaxNotesLength {
		errs.add("notes", CodeTooLong, domain.MaxNotesLength)
	}

	if len(r.Parameters) == 0 {
		errs.add("parameters", CodeRequired, 0)
	}
	for _, id := range sortedKeys(r.Parameters) {
		checkParameter(&errs, id, r.Parameters[id])
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func knownEquipment(id string) bool {
	_, ok := domain.LookupEquipment(id)
	return ok
}

func checkDate(errs *Errors, date string, now time.Time) {
	if date == "" {
		errs.add("date", CodeRequired, 0)
		return
	}
	d, err := time.ParseInLocation(domain.DateLayout, date, now.Location())
	if err != nil {
		errs.add("date", CodeInvalid, 0)
		return
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.After(today) {
		errs.add("date", CodeFutureDate, 0)
		return
	}
	if d.Before(today.AddDate(-1, 0, 0)) {
		errs.add("date", CodeTooOld, 0)
	}
}

// checkParameter tests decimals before range so 20.005 reports decimal_places.
func checkParameter(errs *Errors, id string, v float64) {
	field := "parameters." + id
	p, ok := domain.LookupParameter(id)
	if !ok {
		errs.add(field, CodeInvalid, 0)
		return
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		errs.add(field, CodeInvalid, 0)
		return
	}
	if v < 0 {
		errs.add(field, CodeNegative, 0)
		return
	}
	if DecimalPlaces(v) > domain.MaxParameterDecimals {
		errs.add(field, CodeDecimalPlaces, domain.MaxParameterDecimals)
		return
	}
	if v > p.Limit() {
		errs.add(field, CodeMaxValue, p.Limit())
	}
}

// DecimalPlaces counts digits after the point in the shortest representation of v.
func DecimalPlaces(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// Threshold validates an analysis threshold percentage.
func Threshold(v float64) error {
	if math.IsNaN(v) || v < 1 || v > 100 {
		return Errors{{Field: "analysisThreshold", Code: CodeOutOfRange, Limit: 100}}
	}
	return nil
}

// TimeRange validates an analysis lookback window in days.
func TimeRange(days int) error {
	if days < 1 || days > 365 {
		return Errors{{Field: "analysisTimeRange", Code: CodeOutOfRange, Limit: 365}}
	}
	return nil
}

// comparisonWindows are the offsets, in days, the analysis compares against.
var comparisonWindows = map[int]bool{1: true, 7: true, 30: true}

// Settings validates user preferences, reporting every bad field.
func Settings(s domain.Settings) error {
	var errs Errors
	for _, err := range []error{Threshold(s.AnalysisThreshold), TimeRange(s.AnalysisTimeRange)} {
		if es, ok := err.(Errors); ok {
			errs = append(errs, es...)
		}
	}
	if !comparisonWindows[s.AnalysisComparisonDays] {
		errs.add("analysisComparisonDays", CodeInvalid, 0)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// catalog order keeps error lists stable for the UI
	order := func(id string) int {
		if p, ok := domain.LookupParameter(id); ok {
			return p.Order
		}
		return len(domain.Parameters) + 1
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, oj := order(keys[i]), order(keys[j])
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	return keys
}
