// Package remote talks to the hosted system of record. Every backend maps
// its failures onto domain.RemoteError.
package remote

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// Transport is the remote record store as seen by the reconciler.
type Transport interface {
	// SubmitBatch upserts records in one request. Per-record rejections are
	// reported in BatchResult.Errors; a returned error means nothing was accepted.
	SubmitBatch(ctx context.Context, records []domain.MeasurementRecord) (BatchResult, error)
	QueryRecords(ctx context.Context, f domain.Filter) ([]domain.MeasurementRecord, error)
	// DeleteRecord removes the record only if it belongs to ownerUserID.
	DeleteRecord(ctx context.Context, unit domain.Unit, equipment, date, ownerUserID string) error
}

// Publisher receives changes applied to the remote store.
type Publisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

type BatchError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type BatchResult struct {
	SuccessCount int          `json:"successCount"`
	Errors       []BatchError `json:"errors,omitempty"`
	// Inserted lists the accepted ids that did not exist remotely before.
	Inserted []string `json:"inserted,omitempty"`
}

// Rejected returns the ids the remote store did not accept.
func (r BatchResult) Rejected() map[string]bool {
	out := make(map[string]bool, len(r.Errors))
	for _, e := range r.Errors {
		out[e.ID] = true
	}
	return out
}

// remoteOnly fills the fields every record read back from the remote store has.
func remoteOnly(r *domain.MeasurementRecord) {
	r.ID = r.Key()
	r.SyncStatus = domain.StatusSynced
	if r.UserName == "" {
		r.UserName = "unknown"
	}
}

func publish(ctx context.Context, p Publisher, ev domain.ChangeEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("component", "remote").Str("id", ev.Record.ID).Msg("change event not published")
	}
}
