package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

func series(values ...float64) []Point {
	out := make([]Point, len(values))
	for i, v := range values {
		out[i] = Point{Date: fmt.Sprintf("2026-10-%02d", i+1), Value: v}
	}
	return out
}

func TestDetectAbnormalIncrease(t *testing.T) {
	inc, ok := DetectAbnormalIncrease(series(4, 4, 4, 4, 10), 1, 20)
	require.True(t, ok)
	assert.Equal(t, 150.0, inc.IncreasePercent)
	assert.Equal(t, domain.SeverityCritical, inc.Severity)
	assert.Equal(t, 10.0, inc.CurrentValue)
	assert.Equal(t, 4.0, inc.PreviousValue)
	assert.Equal(t, "2026-10-05", inc.Date)

	tests := []struct {
		name   string
		points []Point
		days   int
		want   domain.Severity
		alert  bool
	}{
		{"flat", series(10, 10), 1, "", false},
		{"single point", series(10), 1, "", false},
		{"exactly at threshold", series(10, 12), 1, "", false},
		{"medium", series(10, 12.5), 1, domain.SeverityMedium, true},
		{"high", series(10, 13.5), 1, domain.SeverityHigh, true},
		{"previous zero", series(0, 5), 1, "", false},
		{"decrease", series(10, 5), 1, "", false},
		{"week offset", series(10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 13.5), 7, domain.SeverityHigh, true},
		{"too few for offset", series(5, 10, 15), 7, "", false},
		{"no offset", series(10, 20), 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc, ok := DetectAbnormalIncrease(tt.points, tt.days, 20)
			assert.Equal(t, tt.alert, ok)
			if tt.alert {
				assert.Equal(t, tt.want, inc.Severity)
			}
		})
	}
}

func TestAnalyzeTrend(t *testing.T) {
	tr, ok := AnalyzeTrend(series(1, 2, 3, 4, 5))
	require.True(t, ok)
	assert.Equal(t, domain.TrendIncreasing, tr.Direction)
	assert.Equal(t, 1.0, tr.Slope)
	assert.Equal(t, 100, tr.Confidence)
	assert.InDelta(t, 6.0, tr.Prediction, 1e-9)

	tr, ok = AnalyzeTrend(series(4, 4, 4))
	require.True(t, ok)
	assert.Equal(t, domain.TrendStable, tr.Direction)
	assert.Zero(t, tr.Confidence)
	assert.Equal(t, 4.0, tr.Prediction)

	tr, ok = AnalyzeTrend(series(9, 6, 3))
	require.True(t, ok)
	assert.Equal(t, domain.TrendDecreasing, tr.Direction)
	assert.Equal(t, -3.0, tr.Slope)
	assert.Equal(t, 0.0, tr.Prediction)

	_, ok = AnalyzeTrend(series(1, 2))
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	st := Describe(series(2, 4, 4, 4, 5, 5, 7, 9))
	assert.Equal(t, 8, st.Count)
	assert.InDelta(t, 5.0, st.Avg, 1e-9)
	assert.InDelta(t, 2.0, st.Std, 1e-9)
	assert.Equal(t, 2.0, st.Min)
	assert.Equal(t, 9.0, st.Max)
	assert.Equal(t, 9.0, st.Latest)
	assert.Equal(t, "2026-10-01", st.FirstDate)
	assert.Equal(t, "2026-10-08", st.LastDate)

	assert.Equal(t, Statistics{}, Describe(nil))
}

func TestDescribeKeepsPointsWithBadDates(t *testing.T) {
	st := Describe([]Point{{Date: "2026-10-01", Value: 2}, {Date: "01/10/2026", Value: 4}})
	assert.Equal(t, 2, st.Count)
	assert.InDelta(t, 3.0, st.Avg, 1e-9)
	assert.Equal(t, "01/10/2026", st.LastDate)
}

func rec(equipment, date string, params map[string]float64) domain.MeasurementRecord {
	return domain.MeasurementRecord{Unit: domain.UnitDRI1, Equipment: equipment, Date: date, Parameters: params}
}

func TestAnalyze(t *testing.T) {
	var records []domain.MeasurementRecord
	// out of order on purpose; grouping sorts by date
	dates := []string{"2026-10-03", "2026-10-01", "2026-10-02", "2026-10-04"}
	values := []float64{3, 1, 2, 10}
	for i, d := range dates {
		records = append(records,
			rec("GB-cp48A", d, map[string]float64{"V1": values[i], "H1": values[i], "A1": values[i]}),
			rec("FN-fnAUX", d, map[string]float64{"V1": 5}),
		)
	}
	records = append(records, rec("UNKNOWN", "2026-10-01", map[string]float64{"V1": 1}))
	records = append(records, rec("FN-fnAUX", "2026-10-01", map[string]float64{"ZZ": 1}))

	report := Analyze(records, domain.DefaultSettings())

	require.Len(t, report.Alerts, 3)
	for _, a := range report.Alerts {
		assert.Equal(t, "GB-cp48A", a.Equipment)
		assert.Equal(t, domain.SeverityCritical, a.Severity)
		assert.Equal(t, RecommendShutdown, a.Recommendation)
		assert.InDelta(t, 233.33, a.IncreasePercent, 1e-9)
	}

	require.Len(t, report.Trends, 4)
	assert.Equal(t, "V1", report.Trends[0].Parameter)
	assert.Equal(t, "H1", report.Trends[1].Parameter)

	require.Contains(t, report.Statistics, "GB-cp48A")
	assert.Equal(t, 4, report.Statistics["GB-cp48A"]["V1"].Count)
	assert.NotContains(t, report.Statistics, "UNKNOWN")
	assert.NotContains(t, report.Statistics["FN-fnAUX"], "ZZ")

	require.Len(t, report.Recommendations, 2)
	assert.Equal(t, Recommendation{Type: RecommendationCritical, Count: 3}, report.Recommendations[0])
	assert.Equal(t, RecommendationTrend, report.Recommendations[1].Type)
}

func TestAlertsSortedBySeverity(t *testing.T) {
	records := []domain.MeasurementRecord{
		rec("GB-cp48A", "2026-10-01", map[string]float64{"V1": 5, "H1": 5, "A1": 5}),
		rec("GB-cp48A", "2026-10-02", map[string]float64{"V1": 6.25, "H1": 6.75, "A1": 15}),
	}
	report := Analyze(records, domain.DefaultSettings())
	require.Len(t, report.Alerts, 3)
	assert.Equal(t, domain.SeverityCritical, report.Alerts[0].Severity)
	assert.Equal(t, domain.SeverityHigh, report.Alerts[1].Severity)
	assert.Equal(t, domain.SeverityMedium, report.Alerts[2].Severity)
	assert.Equal(t, RecommendMoreMonitoring, report.Alerts[2].Recommendation)
	assert.Empty(t, report.Trends)
}

func TestGlobalRecommendationsNeedsThreeConfidentTrends(t *testing.T) {
	trends := []domain.TrendResult{
		{Direction: domain.TrendIncreasing, Confidence: 90},
		{Direction: domain.TrendIncreasing, Confidence: 71},
		{Direction: domain.TrendIncreasing, Confidence: 70},
	}
	assert.Empty(t, GlobalRecommendations(nil, trends))
}
