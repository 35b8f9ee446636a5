package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/localstore"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/metrics"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/reconcile"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

const unknownUser = "unknown"

// Entry is what an operator submits for one equipment on one day.
type Entry struct {
	Unit       domain.Unit        `json:"unit"`
	Equipment  string             `json:"equipment"`
	Date       string             `json:"date"`
	Parameters map[string]float64 `json:"parameters"`
	Notes      string             `json:"notes"`
}

type RecordService struct {
	local      *localstore.Store
	remote     remote.Transport
	auth       auth.Provider
	sync       *reconcile.Reconciler
	settings   *SettingsService
	syncOnSave bool
	now        func() time.Time
}

// Save validates e, stamps it with the session and writes it locally. Records
// saved while signed in are pending; otherwise they stay local_only. When
// sync-on-save is enabled a sync follows, and its failure does not fail the save.
func (s *RecordService) Save(ctx context.Context, e Entry) (*domain.MeasurementRecord, error) {
	now := s.now()
	rec := domain.MeasurementRecord{
		Unit:       e.Unit,
		Equipment:  strings.TrimSpace(e.Equipment),
		Date:       strings.TrimSpace(e.Date),
		Parameters: e.Parameters,
		Notes:      strings.TrimSpace(e.Notes),
	}
	if err := validation.Record(&rec, now); err != nil {
		return nil, err
	}

	rec.ID = rec.Key()
	rec.Timestamp = now
	if u, ok := s.auth.CurrentUser(); ok {
		rec.UserID = u.ID
		rec.UserName = u.DisplayName()
		rec.SyncStatus = domain.StatusPending
	} else {
		rec.UserName = unknownUser
		rec.SyncStatus = domain.StatusLocalOnly
	}

	if err := s.local.Put(ctx, rec); err != nil {
		return nil, err
	}
	metrics.RecordsSaved.WithLabelValues(string(rec.SyncStatus)).Inc()

	if rec.SyncStatus == domain.StatusPending && s.shouldSyncOnSave(ctx) {
		if _, err := s.sync.SyncToServer(ctx); err != nil {
			if errors.Is(err, domain.ErrSyncInProgress) {
				log.Debug().Str("id", rec.ID).Msg("sync on save skipped, sync already running")
			} else {
				log.Warn().Err(err).Str("id", rec.ID).Msg("sync on save failed")
			}
			return &rec, nil
		}
		if fresh, err := s.local.Get(ctx, rec.ID); err == nil {
			return fresh, nil
		}
	}
	return &rec, nil
}

func (s *RecordService) shouldSyncOnSave(ctx context.Context) bool {
	if s.syncOnSave {
		return true
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("settings unavailable, sync on save off")
		return false
	}
	return st.SyncOnDataEntry
}

// Delete removes the record locally. A signed-in user also deletes the remote
// copy, scoped to their own records, when the record was synced or is not
// held locally. The remote delete runs first so a failure leaves both intact.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	unit, equipment, date, err := domain.ParseRecordID(id)
	if err != nil {
		return fmt.Errorf("delete %q: %w", id, domain.ErrNotFound)
	}

	existing, err := s.local.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	u, signedIn := s.auth.CurrentUser()
	if signedIn && s.remote != nil && (existing == nil || existing.SyncStatus == domain.StatusSynced) {
		err := s.remote.DeleteRecord(ctx, unit, equipment, date, u.ID)
		if err != nil && domain.RemoteKind(err) != domain.KindNotFound {
			return err
		}
	}
	return s.local.Delete(ctx, id)
}

// Query returns the merged view for f.
func (s *RecordService) Query(ctx context.Context, f domain.Filter, preferRemote bool) ([]domain.MeasurementRecord, error) {
	return s.sync.GetData(ctx, f, preferRemote)
}

// ClearLocal wipes local records, settings and the last sync time.
func (s *RecordService) ClearLocal(ctx context.Context) error {
	if err := s.local.Clear(ctx); err != nil {
		return err
	}
	log.Info().Msg("local data cleared")
	return nil
}

type ingestMessage struct {
	UnitType        string                 `json:"unitType"`
	EquipmentID     string                 `json:"equipmentId"`
	MeasurementDate string                 `json:"measurementDate"`
	Parameters      map[string]interface{} `json:"parameters"`
	Notes           string                 `json:"notes"`
}

// FromMQTT saves a data-entry message published by a field device. Parameter
// values may arrive as numbers or numeric strings; a missing date means today.
func (s *RecordService) FromMQTT(ctx context.Context, topic string, payload []byte) (*domain.MeasurementRecord, error) {
	var m ingestMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		metrics.IngestMessages.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("decode %s message: %w", topic, err)
	}

	e := Entry{
		Unit:       domain.Unit(m.UnitType),
		Equipment:  m.EquipmentID,
		Date:       m.MeasurementDate,
		Parameters: make(map[string]float64, len(m.Parameters)),
		Notes:      m.Notes,
	}
	if e.Date == "" {
		e.Date = s.now().Format(domain.DateLayout)
	}
	for id, raw := range m.Parameters {
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			metrics.IngestMessages.WithLabelValues("malformed").Inc()
			return nil, fmt.Errorf("parameter %s: %w", id, err)
		}
		e.Parameters[id] = v
	}

	rec, err := s.Save(ctx, e)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			metrics.IngestMessages.WithLabelValues("invalid").Inc()
		} else {
			metrics.IngestMessages.WithLabelValues("failed").Inc()
		}
		return nil, err
	}
	metrics.IngestMessages.WithLabelValues("ok").Inc()
	return rec, nil
}
