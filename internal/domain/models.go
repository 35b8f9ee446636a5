package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for record dates and filters.
const DateLayout = "2006-01-02"

type Unit string

const (
	UnitDRI1 Unit = "DRI1"
	UnitDRI2 Unit = "DRI2"
)

// SyncStatus describes a record's relationship to the remote store.
// Only the local store's MarkSynced produces StatusSynced.
type SyncStatus string

const (
	StatusLocalOnly SyncStatus = "local_only"
	StatusPending   SyncStatus = "pending"
	StatusSynced    SyncStatus = "synced"
)

func (s SyncStatus) Valid() bool {
	switch s {
	case StatusLocalOnly, StatusPending, StatusSynced:
		return true
	}
	return false
}

// MeasurementRecord is one day's vibration readings for a unit/equipment pair.
type MeasurementRecord struct {
	ID              string             `db:"id" json:"id"`
	Unit            Unit               `db:"unit" json:"unit"`
	Equipment       string             `db:"equipment" json:"equipment"`
	Date            string             `db:"date" json:"date"`
	Parameters      map[string]float64 `db:"-" json:"parameters"`
	Notes           string             `db:"notes" json:"notes,omitempty"`
	UserID          string             `db:"user_id" json:"userId,omitempty"`
	UserName        string             `db:"user_name" json:"userName,omitempty"`
	Timestamp       time.Time          `db:"timestamp" json:"timestamp"`
	ServerTimestamp *time.Time         `db:"server_timestamp" json:"serverTimestamp,omitempty"`
	SyncStatus      SyncStatus         `db:"sync_status" json:"syncStatus"`
}

// RecordID derives the storage key of a (unit, equipment, date) triple.
func RecordID(unit Unit, equipment, date string) string {
	return string(unit) + "_" + equipment + "_" + date
}

// ParseRecordID splits a derived key back into its parts.
func ParseRecordID(id string) (Unit, string, string, error) {
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("malformed record id %q", id)
	}
	return Unit(parts[0]), parts[1], parts[2], nil
}

// Key returns the derived key for the record's current unit, equipment and date.
func (r *MeasurementRecord) Key() string {
	return RecordID(r.Unit, r.Equipment, r.Date)
}

// Clone returns a deep copy so callers can't alias the parameter map.
func (r MeasurementRecord) Clone() MeasurementRecord {
	out := r
	if r.Parameters != nil {
		out.Parameters = make(map[string]float64, len(r.Parameters))
		for k, v := range r.Parameters {
			out.Parameters[k] = v
		}
	}
	if r.ServerTimestamp != nil {
		ts := *r.ServerTimestamp
		out.ServerTimestamp = &ts
	}
	return out
}

// Filter selects records. Zero-valued fields are ignored.
type Filter struct {
	Unit       Unit       `json:"unit,omitempty" query:"unit"`
	Equipment  string     `json:"equipment,omitempty" query:"equipment"`
	Date       string     `json:"date,omitempty" query:"date"`
	DateFrom   string     `json:"dateFrom,omitempty" query:"dateFrom"`
	DateTo     string     `json:"dateTo,omitempty" query:"dateTo"`
	SyncStatus SyncStatus `json:"syncStatus,omitempty" query:"syncStatus"`
	UserID     string     `json:"userId,omitempty" query:"userId"`
}

// Match reports whether r satisfies every set field of f.
func (f Filter) Match(r *MeasurementRecord) bool {
	if f.Unit != "" && r.Unit != f.Unit {
		return false
	}
	if f.Equipment != "" && r.Equipment != f.Equipment {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if f.DateFrom != "" && r.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && r.Date > f.DateTo {
		return false
	}
	if f.SyncStatus != "" && r.SyncStatus != f.SyncStatus {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	return true
}

type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting, critical highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	}
	return 0
}

type AnalysisAlert struct {
	Equipment       string   `json:"equipment"`
	Parameter       string   `json:"parameter"`
	Severity        Severity `json:"severity"`
	CurrentValue    float64  `json:"currentValue"`
	PreviousValue   float64  `json:"previousValue"`
	IncreasePercent float64  `json:"increasePercent"`
	Date            string   `json:"date"`
	Recommendation  string   `json:"recommendation"`
}

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

type TrendResult struct {
	Equipment          string         `json:"equipment"`
	Parameter          string         `json:"parameter"`
	Direction          TrendDirection `json:"direction"`
	Slope              float64        `json:"slope"`
	Confidence         int            `json:"confidence"`
	PredictedNextValue float64        `json:"predictedNextValue"`
}

// Settings are the operator's preferences, kept in the local settings table.
type Settings struct {
	AnalysisThreshold      float64 `json:"analysisThreshold"`
	AnalysisTimeRange      int     `json:"analysisTimeRange"`
	AnalysisComparisonDays int     `json:"analysisComparisonDays"`
	AutoSync               bool    `json:"autoSync"`
	SyncOnDataEntry        bool    `json:"syncOnDataEntry"`
}

func DefaultSettings() Settings {
	return Settings{
		AnalysisThreshold:      20,
		AnalysisTimeRange:      7,
		AnalysisComparisonDays: 1,
	}
}

type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent is one remote mutation as carried on the change feed.
// Foreign is set by the receiver when the change came from another user.
type ChangeEvent struct {
	EventType ChangeType        `json:"eventType"`
	Record    MeasurementRecord `json:"record"`
	Foreign   bool              `json:"foreign,omitempty"`
}
