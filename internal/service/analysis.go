package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/analysis"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/cloud"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/metrics"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/reconcile"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

// ErrCloudDisabled is returned by operations that need the AWS integrations
// when they are not configured.
var ErrCloudDisabled = errors.New("cloud services not enabled")

// AnalysisResult is one analysis run with the window it covered.
type AnalysisResult struct {
	Unit        domain.Unit     `json:"unit"`
	DateFrom    string          `json:"dateFrom"`
	DateTo      string          `json:"dateTo"`
	Settings    domain.Settings `json:"settings"`
	RecordCount int             `json:"recordCount"`
	GeneratedAt time.Time       `json:"generatedAt"`
	*analysis.Report
}

type AnalysisService struct {
	sync     *reconcile.Reconciler
	settings *SettingsService
	reports  ReportUploader
	notifier AlertNotifier
	now      func() time.Time
}

// Run analyses unit over the last days days, or the configured window when
// days is zero. Remote data is preferred when available.
func (s *AnalysisService) Run(ctx context.Context, unit domain.Unit, days int) (*AnalysisResult, error) {
	if !unit.Valid() {
		return nil, validation.Errors{{Field: "unit", Code: validation.CodeInvalid}}
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if days != 0 {
		if err := validation.TimeRange(days); err != nil {
			return nil, err
		}
		settings.AnalysisTimeRange = days
	}

	now := s.now()
	f := domain.Filter{
		Unit:     unit,
		DateFrom: now.AddDate(0, 0, -settings.AnalysisTimeRange).Format(domain.DateLayout),
		DateTo:   now.Format(domain.DateLayout),
	}
	records, err := s.sync.GetData(ctx, f, true)
	if err != nil {
		return nil, err
	}

	report := analysis.Analyze(records, settings)
	for _, a := range report.Alerts {
		metrics.Alerts.WithLabelValues(string(a.Severity)).Inc()
	}
	log.Info().
		Str("unit", string(unit)).
		Int("records", len(records)).
		Int("alerts", len(report.Alerts)).
		Int("trends", len(report.Trends)).
		Msg("analysis completed")

	return &AnalysisResult{
		Unit:        unit,
		DateFrom:    f.DateFrom,
		DateTo:      f.DateTo,
		Settings:    settings,
		RecordCount: len(records),
		GeneratedAt: now,
		Report:      report,
	}, nil
}

// Export runs an analysis, uploads the JSON report and notifies operators
// of critical alerts. It returns the result and a download link.
func (s *AnalysisService) Export(ctx context.Context, unit domain.Unit, days int) (*AnalysisResult, string, error) {
	if s.reports == nil {
		return nil, "", ErrCloudDisabled
	}
	res, err := s.Run(ctx, unit, days)
	if err != nil {
		return nil, "", err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return nil, "", fmt.Errorf("encode report: %w", err)
	}
	url, err := s.reports.UploadReport(ctx, cloud.ReportKey(string(unit), res.GeneratedAt), data, "application/json")
	if err != nil {
		return nil, "", err
	}

	if s.notifier != nil {
		if err := s.notifier.SendCriticalAlerts(ctx, unit, res.Alerts); err != nil {
			log.Warn().Err(err).Str("unit", string(unit)).Msg("critical alert notification failed")
		}
	}
	return res, url, nil
}
