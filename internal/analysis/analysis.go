// Package analysis derives alerts, trends and statistics from measurement
// series. Everything here is a pure function of its input.
package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// Recommendation codes attached to alerts.
const (
	RecommendShutdown       = "shutdown_and_inspect"
	RecommendUrgentRepair   = "schedule_urgent_repair"
	RecommendMoreMonitoring = "increase_monitoring"
)

type RecommendationType string

const (
	RecommendationCritical RecommendationType = "critical"
	RecommendationTrend    RecommendationType = "trend"
)

// Recommendation is a report-wide advice; Count is how many alerts or
// trends triggered it.
type Recommendation struct {
	Type  RecommendationType `json:"type"`
	Count int                `json:"count"`
}

// Point is one dated reading of a single parameter.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type GroupKey struct {
	Equipment string
	Parameter string
}

type Increase struct {
	CurrentValue    float64
	PreviousValue   float64
	IncreasePercent float64
	Date            string
	Severity        domain.Severity
}

type Trend struct {
	Direction  domain.TrendDirection
	Slope      float64
	Confidence int
	Prediction float64
}

type Statistics struct {
	Count     int     `json:"count"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Avg       float64 `json:"avg"`
	Std       float64 `json:"std"`
	Latest    float64 `json:"latest"`
	FirstDate string  `json:"firstDate"`
	LastDate  string  `json:"lastDate"`
}

// Report is the full result of one analysis run. Statistics are keyed by
// equipment, then parameter.
type Report struct {
	Alerts          []domain.AnalysisAlert           `json:"alerts"`
	Trends          []domain.TrendResult             `json:"trends"`
	Statistics      map[string]map[string]Statistics `json:"statistics"`
	Recommendations []Recommendation                 `json:"recommendations"`
}

// Empty reports whether the run had no data to work with.
func (r *Report) Empty() bool {
	return len(r.Statistics) == 0
}

// Group partitions records by (equipment, parameter) with each series
// sorted by date ascending.
func Group(records []domain.MeasurementRecord) map[GroupKey][]Point {
	groups := make(map[GroupKey][]Point)
	for _, r := range records {
		for id, v := range r.Parameters {
			k := GroupKey{Equipment: r.Equipment, Parameter: id}
			groups[k] = append(groups[k], Point{Date: r.Date, Value: v})
		}
	}
	for _, pts := range groups {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date < pts[j].Date })
	}
	return groups
}

// DetectAbnormalIncrease compares the latest value with the one
// comparisonDays positions earlier within the last 2*comparisonDays points.
func DetectAbnormalIncrease(points []Point, comparisonDays int, thresholdPercent float64) (Increase, bool) {
	if len(points) < 2 || comparisonDays < 1 {
		return Increase{}, false
	}
	start := len(points) - 2*comparisonDays
	if start < 0 {
		start = 0
	}
	recent := points[start:]
	if len(recent) < 2 {
		return Increase{}, false
	}
	prevIdx := len(recent) - 1 - comparisonDays
	if prevIdx < 0 {
		return Increase{}, false
	}

	current := recent[len(recent)-1]
	previous := recent[prevIdx].Value
	if previous == 0 || math.IsNaN(previous) {
		return Increase{}, false
	}

	pct := (current.Value - previous) / previous * 100
	if !(pct > thresholdPercent) {
		return Increase{}, false
	}

	sev := domain.SeverityMedium
	switch {
	case pct > thresholdPercent*2:
		sev = domain.SeverityCritical
	case pct > thresholdPercent*1.5:
		sev = domain.SeverityHigh
	}
	return Increase{
		CurrentValue:    current.Value,
		PreviousValue:   previous,
		IncreasePercent: round(pct, 2),
		Date:            current.Date,
		Severity:        sev,
	}, true
}

// AnalyzeTrend fits a least-squares line over the point index.
func AnalyzeTrend(points []Point) (Trend, bool) {
	n := len(points)
	if n < 3 {
		return Trend{}, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	fn := float64(n)
	slope := (fn*sumXY - sumX*sumY) / (fn*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssRes, ssTot float64
	for i, p := range points {
		predicted := slope*float64(i) + intercept
		ssRes += (p.Value - predicted) * (p.Value - predicted)
		ssTot += (p.Value - meanY) * (p.Value - meanY)
	}
	confidence := 0
	if ssTot > 0 {
		confidence = int(round((1-ssRes/ssTot)*100, 0))
	}

	dir := domain.TrendStable
	switch {
	case slope > 0.01:
		dir = domain.TrendIncreasing
	case slope < -0.01:
		dir = domain.TrendDecreasing
	}
	return Trend{
		Direction:  dir,
		Slope:      round(slope, 3),
		Confidence: confidence,
		Prediction: round(slope*fn+intercept, 2),
	}, true
}

// Describe computes descriptive statistics, using the population standard
// deviation.
func Describe(points []Point) Statistics {
	if len(points) == 0 {
		return Statistics{}
	}
	series := make([]aggregator.Point, len(points))
	st := Statistics{
		Count:     len(points),
		Min:       math.Inf(1),
		Max:       math.Inf(-1),
		Latest:    points[len(points)-1].Value,
		FirstDate: points[0].Date,
		LastDate:  points[len(points)-1].Date,
	}
	for i, p := range points {
		series[i] = aggregator.Point{Value: p.Value}
		// Average reads values only; an unparsable date keeps the value
		// with a zero timestamp.
		if ts, err := time.Parse(domain.DateLayout, p.Date); err == nil {
			series[i].Timestamp = ts
		}
		st.Min = math.Min(st.Min, p.Value)
		st.Max = math.Max(st.Max, p.Value)
	}
	st.Avg = aggregator.Average(series)

	var variance float64
	for _, p := range points {
		d := p.Value - st.Avg
		variance += d * d
	}
	st.Std = math.Sqrt(variance / float64(len(points)))
	return st
}

// Analyze runs every check over records. Groups for equipment or parameters
// missing from the catalog are ignored.
func Analyze(records []domain.MeasurementRecord, settings domain.Settings) *Report {
	report := &Report{
		Alerts:          []domain.AnalysisAlert{},
		Trends:          []domain.TrendResult{},
		Statistics:      map[string]map[string]Statistics{},
		Recommendations: []Recommendation{},
	}

	groups := Group(records)
	for _, k := range orderedKeys(groups) {
		points := groups[k]

		if inc, ok := DetectAbnormalIncrease(points, settings.AnalysisComparisonDays, settings.AnalysisThreshold); ok {
			report.Alerts = append(report.Alerts, domain.AnalysisAlert{
				Equipment:       k.Equipment,
				Parameter:       k.Parameter,
				Severity:        inc.Severity,
				CurrentValue:    inc.CurrentValue,
				PreviousValue:   inc.PreviousValue,
				IncreasePercent: inc.IncreasePercent,
				Date:            inc.Date,
				Recommendation:  RecommendationFor(inc.Severity),
			})
		}

		if tr, ok := AnalyzeTrend(points); ok {
			report.Trends = append(report.Trends, domain.TrendResult{
				Equipment:          k.Equipment,
				Parameter:          k.Parameter,
				Direction:          tr.Direction,
				Slope:              tr.Slope,
				Confidence:         tr.Confidence,
				PredictedNextValue: tr.Prediction,
			})
		}

		if report.Statistics[k.Equipment] == nil {
			report.Statistics[k.Equipment] = map[string]Statistics{}
		}
		report.Statistics[k.Equipment][k.Parameter] = Describe(points)
	}

	sort.SliceStable(report.Alerts, func(i, j int) bool {
		return report.Alerts[i].Severity.Rank() > report.Alerts[j].Severity.Rank()
	})
	report.Recommendations = GlobalRecommendations(report.Alerts, report.Trends)
	return report
}

func RecommendationFor(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return RecommendShutdown
	case domain.SeverityHigh:
		return RecommendUrgentRepair
	}
	return RecommendMoreMonitoring
}

// GlobalRecommendations flags any critical alert, and more than two
// confident increasing trends.
func GlobalRecommendations(alerts []domain.AnalysisAlert, trends []domain.TrendResult) []Recommendation {
	out := []Recommendation{}

	var critical int
	for _, a := range alerts {
		if a.Severity == domain.SeverityCritical {
			critical++
		}
	}
	if critical > 0 {
		out = append(out, Recommendation{Type: RecommendationCritical, Count: critical})
	}

	var increasing int
	for _, t := range trends {
		if t.Direction == domain.TrendIncreasing && t.Confidence > 70 {
			increasing++
		}
	}
	if increasing > 2 {
		out = append(out, Recommendation{Type: RecommendationTrend, Count: increasing})
	}
	return out
}

// orderedKeys returns catalog groups in equipment then parameter order.
func orderedKeys(groups map[GroupKey][]Point) []GroupKey {
	keys := make([]GroupKey, 0, len(groups))
	for k := range groups {
		if _, ok := domain.LookupEquipment(k.Equipment); !ok {
			continue
		}
		if _, ok := domain.LookupParameter(k.Parameter); !ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Equipment != keys[j].Equipment {
			return equipmentOrder(keys[i].Equipment) < equipmentOrder(keys[j].Equipment)
		}
		pi, _ := domain.LookupParameter(keys[i].Parameter)
		pj, _ := domain.LookupParameter(keys[j].Parameter)
		return pi.Order < pj.Order
	})
	return keys
}

func equipmentOrder(id string) int {
	for i, e := range domain.Equipments {
		if e.ID == id {
			return i
		}
	}
	return len(domain.Equipments)
}

// round rounds half up at the given number of decimals.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(v*p+0.5) / p
}
