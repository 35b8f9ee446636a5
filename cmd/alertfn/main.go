package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/analysis"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/cloud"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/config"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/service"
)

// Stream-triggered alerting: every inserted or modified measurement is
// compared against its equipment's recent history in the remote table, and
// critical increases on the measured day go out over SNS.

type detector struct {
	records  remote.Transport
	notifier service.AlertNotifier
	settings domain.Settings
}

var d *detector

// changedKey identifies the equipment and day a stream record touched.
type changedKey struct {
	unit      domain.Unit
	equipment string
	date      string
}

func parseChange(image map[string]events.DynamoDBAttributeValue) (changedKey, error) {
	var k changedKey
	if v, ok := image["unitType"]; ok {
		k.unit = domain.Unit(v.String())
	}
	if v, ok := image["equipmentId"]; ok {
		k.equipment = v.String()
	}
	if v, ok := image["measurementDate"]; ok {
		k.date = v.String()
	}
	if !k.unit.Valid() || k.equipment == "" || k.date == "" {
		return k, fmt.Errorf("incomplete stream image: unit=%q equipment=%q date=%q", k.unit, k.equipment, k.date)
	}
	return k, nil
}

func Handler(ctx context.Context, event events.DynamoDBEvent) error {
	return d.handle(ctx, event)
}

func (d *detector) handle(ctx context.Context, event events.DynamoDBEvent) error {
	log.Info().Int("records", len(event.Records)).Msg("processing stream batch")

	seen := make(map[changedKey]bool)
	for _, rec := range event.Records {
		if rec.EventName != "INSERT" && rec.EventName != "MODIFY" {
			continue
		}
		k, err := parseChange(rec.Change.NewImage)
		if err != nil {
			log.Warn().Err(err).Str("event", rec.EventID).Msg("stream record skipped")
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true

		alerts, err := d.check(ctx, k)
		if err != nil {
			log.Error().Err(err).Str("equipment", k.equipment).Msg("history lookup failed")
			continue
		}
		if len(alerts) == 0 {
			continue
		}
		if err := d.notifier.SendCriticalAlerts(ctx, k.unit, alerts); err != nil {
			log.Error().Err(err).Str("unit", string(k.unit)).Msg("alert notification failed")
		}
	}
	return nil
}

// check analyses the equipment's window ending at the changed day and
// returns the alerts raised for that day.
func (d *detector) check(ctx context.Context, k changedKey) ([]domain.AnalysisAlert, error) {
	day, err := time.Parse(domain.DateLayout, k.date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", k.date, err)
	}
	history, err := d.records.QueryRecords(ctx, domain.Filter{
		Unit:      k.unit,
		Equipment: k.equipment,
		DateFrom:  day.AddDate(0, 0, -d.settings.AnalysisTimeRange).Format(domain.DateLayout),
		DateTo:    k.date,
	})
	if err != nil {
		return nil, err
	}

	report := analysis.Analyze(history, d.settings)
	var out []domain.AnalysisAlert
	for _, a := range report.Alerts {
		if a.Date == k.date {
			out = append(out, a)
		}
	}
	return out, nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg, err := cloud.LoadConfig(context.Background(), config.AWSRegion())
	if err != nil {
		log.Fatal().Err(err).Msg("aws config failed")
	}
	arn := config.SNSTopicArn()
	if arn == "" {
		log.Fatal().Msg("AWS_SNS_TOPIC_ARN is required")
	}
	d = &detector{
		records:  remote.NewDynamoDBStore(dynamodb.NewFromConfig(cfg), config.DynamoDBTable(), nil),
		notifier: cloud.NewSNSClient(cfg, arn),
		settings: domain.DefaultSettings(),
	}
	lambda.Start(Handler)
}
