package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
)

type historyStore struct {
	remote.Transport
	records []domain.MeasurementRecord
	filters []domain.Filter
	err     error
}

func (h *historyStore) QueryRecords(_ context.Context, f domain.Filter) ([]domain.MeasurementRecord, error) {
	h.filters = append(h.filters, f)
	if h.err != nil {
		return nil, h.err
	}
	var out []domain.MeasurementRecord
	for _, r := range h.records {
		if f.Match(&r) {
			out = append(out, r)
		}
	}
	return out, nil
}

type sentAlerts struct {
	unit   domain.Unit
	alerts []domain.AnalysisAlert
}

type captureNotifier struct{ sent []sentAlerts }

func (c *captureNotifier) SendCriticalAlerts(_ context.Context, unit domain.Unit, alerts []domain.AnalysisAlert) error {
	c.sent = append(c.sent, sentAlerts{unit: unit, alerts: alerts})
	return nil
}

func reading(date string, v float64) domain.MeasurementRecord {
	r := domain.MeasurementRecord{
		Unit:       domain.UnitDRI1,
		Equipment:  "GB-cp48A",
		Date:       date,
		Parameters: map[string]float64{"V1": v},
		SyncStatus: domain.StatusSynced,
	}
	r.ID = r.Key()
	return r
}

func streamRecord(name, unit, equipment, date string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   name + "-" + date,
		EventName: name,
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"unitType":        events.NewStringAttribute(unit),
				"equipmentId":     events.NewStringAttribute(equipment),
				"measurementDate": events.NewStringAttribute(date),
			},
		},
	}
}

func newDetector(store *historyStore) (*detector, *captureNotifier) {
	n := &captureNotifier{}
	return &detector{records: store, notifier: n, settings: domain.DefaultSettings()}, n
}

func TestHandleNotifiesIncreaseOnChangedDay(t *testing.T) {
	store := &historyStore{records: []domain.MeasurementRecord{
		reading("2026-10-16", 4),
		reading("2026-10-17", 4),
		reading("2026-10-18", 10),
	}}
	det, n := newDetector(store)

	err := det.handle(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("INSERT", "DRI1", "GB-cp48A", "2026-10-18"),
		streamRecord("MODIFY", "DRI1", "GB-cp48A", "2026-10-18"),
	}})
	require.NoError(t, err)

	require.Len(t, store.filters, 1)
	assert.Equal(t, "2026-10-11", store.filters[0].DateFrom)
	assert.Equal(t, "2026-10-18", store.filters[0].DateTo)

	require.Len(t, n.sent, 1)
	assert.Equal(t, domain.UnitDRI1, n.sent[0].unit)
	require.Len(t, n.sent[0].alerts, 1)
	assert.Equal(t, domain.SeverityCritical, n.sent[0].alerts[0].Severity)
}

func TestHandleIgnoresOlderDays(t *testing.T) {
	store := &historyStore{records: []domain.MeasurementRecord{
		reading("2026-10-16", 4),
		reading("2026-10-17", 10),
	}}
	det, n := newDetector(store)

	// an edit to the baseline day does not re-raise the following day's alert
	err := det.handle(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("MODIFY", "DRI1", "GB-cp48A", "2026-10-16"),
	}})
	require.NoError(t, err)
	assert.Empty(t, n.sent)
}

func TestHandleSkipsRemovesAndBadImages(t *testing.T) {
	store := &historyStore{err: errors.New("throttled")}
	det, n := newDetector(store)

	err := det.handle(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		streamRecord("REMOVE", "DRI1", "GB-cp48A", "2026-10-18"),
		streamRecord("INSERT", "DRI9", "GB-cp48A", "2026-10-18"),
		streamRecord("INSERT", "DRI2", "CP-cp51", "2026-10-18"),
	}})
	require.NoError(t, err)
	assert.Len(t, store.filters, 1)
	assert.Empty(t, n.sent)
}
