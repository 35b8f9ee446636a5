// Package reconcile moves pending local records to the remote store and
// builds the combined local and remote read view.
package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/localstore"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/metrics"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

// LocalStore is the local persistence the reconciler depends on.
type LocalStore interface {
	Query(ctx context.Context, f domain.Filter) ([]domain.MeasurementRecord, error)
	MarkSynced(ctx context.Context, marks []localstore.SyncMark, at time.Time) (int, error)
	LastSync(ctx context.Context) (time.Time, bool, error)
	SetLastSync(ctx context.Context, t time.Time) error
}

var errNoRemote = errors.New("no remote store configured")

type Reconciler struct {
	local  LocalStore
	remote remote.Transport
	auth   auth.Provider
	now    func() time.Time

	inProgress atomic.Bool
}

type Option func(*Reconciler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New builds a reconciler. A nil transport means no remote store: reads are
// local only and sync fails with network_unreachable.
func New(local LocalStore, transport remote.Transport, provider auth.Provider, opts ...Option) *Reconciler {
	r := &Reconciler{local: local, remote: transport, auth: provider, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordError explains why one record was not synced.
type RecordError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

type SyncResult struct {
	SyncedCount int           `json:"syncedCount"`
	Errors      []RecordError `json:"errors,omitempty"`
}

// SyncToServer pushes every pending record in one batch. Only one sync runs
// at a time; a concurrent call fails with domain.ErrSyncInProgress. When the
// remote call fails nothing is marked synced.
func (r *Reconciler) SyncToServer(ctx context.Context) (*SyncResult, error) {
	if !r.inProgress.CompareAndSwap(false, true) {
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeBusy).Inc()
		return nil, domain.ErrSyncInProgress
	}
	defer r.inProgress.Store(false)

	if !r.auth.IsAuthenticated() {
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeUnauthenticated).Inc()
		return nil, domain.ErrAuthRequired("sync")
	}
	if r.remote == nil {
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, &domain.RemoteError{Kind: domain.KindNetworkUnreachable, Op: "sync", Err: errNoRemote}
	}

	pending, err := r.local.Query(ctx, domain.Filter{SyncStatus: domain.StatusPending})
	if err != nil {
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}
	res := &SyncResult{}
	if len(pending) == 0 {
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeSuccess).Inc()
		return res, nil
	}

	now := r.now()
	valid := make([]domain.MeasurementRecord, 0, len(pending))
	for _, rec := range pending {
		if err := validation.Record(&rec, now); err != nil {
			res.Errors = append(res.Errors, RecordError{ID: rec.ID, Message: err.Error(), Err: err})
			continue
		}
		valid = append(valid, rec)
	}
	if len(valid) == 0 {
		metrics.RecordsRejected.Add(float64(len(res.Errors)))
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeSuccess).Inc()
		log.Warn().Str("component", "reconcile").Int("invalid", len(res.Errors)).Msg("no valid pending records to sync")
		return res, nil
	}

	started := time.Now()
	batch, err := r.remote.SubmitBatch(ctx, valid)
	metrics.SyncDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error().Err(err).Str("component", "reconcile").Int("pending", len(valid)).Msg("sync batch failed")
		return nil, err
	}

	rejected := batch.Rejected()
	marks := make([]localstore.SyncMark, 0, len(valid))
	for _, rec := range valid {
		if rejected[rec.ID] {
			continue
		}
		marks = append(marks, localstore.SyncMark{ID: rec.ID, Timestamp: rec.Timestamp})
	}
	for _, be := range batch.Errors {
		res.Errors = append(res.Errors, RecordError{ID: be.ID, Message: be.Message})
	}

	at := r.now()
	synced, err := r.local.MarkSynced(ctx, marks, at)
	if err != nil {
		// the remote upsert is idempotent, so these records go out again next run
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error().Err(err).Str("component", "reconcile").Int("accepted", len(marks)).Msg("marking records synced failed")
		return nil, err
	}
	res.SyncedCount = synced

	if err := r.local.SetLastSync(ctx, at); err != nil {
		log.Warn().Err(err).Str("component", "reconcile").Msg("last sync time not stored")
	}

	metrics.RecordsSynced.Add(float64(synced))
	metrics.RecordsRejected.Add(float64(len(res.Errors)))
	metrics.SyncRuns.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info().
		Str("component", "reconcile").
		Int("synced", synced).
		Int("failed", len(res.Errors)).
		Msg("sync completed")
	return res, nil
}

// GetData returns the combined view for f. With preferRemote and a signed-in
// user the remote records are fetched first; if that fails the local data
// alone is returned. A remote record wins over a local one with the same id,
// so a pending local re-edit of a synced record shows only after it is pushed.
// Records are ordered by date, then write time, newest first.
func (r *Reconciler) GetData(ctx context.Context, f domain.Filter, preferRemote bool) ([]domain.MeasurementRecord, error) {
	var remoteRecords []domain.MeasurementRecord
	remoteOK := false
	if preferRemote && r.remote != nil && r.auth.IsAuthenticated() {
		recs, err := r.remote.QueryRecords(ctx, f)
		if err != nil {
			metrics.RemoteReadFallbacks.Inc()
			log.Warn().Err(err).Str("component", "reconcile").Msg("remote read failed, serving local data")
		} else {
			remoteRecords, remoteOK = recs, true
		}
	}

	localRecords, err := r.local.Query(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MeasurementRecord, 0, len(remoteRecords)+len(localRecords))
	seen := make(map[string]bool, len(remoteRecords))
	for _, rec := range remoteRecords {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}
	for _, rec := range localRecords {
		if remoteOK && rec.SyncStatus == domain.StatusSynced {
			continue
		}
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}

	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders records by date, then timestamp, both descending.
func SortNewestFirst(recs []domain.MeasurementRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date > recs[j].Date
		}
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
}

type Status struct {
	InProgress    bool       `json:"inProgress"`
	Authenticated bool       `json:"authenticated"`
	LastSync      *time.Time `json:"lastSync,omitempty"`
	Pending       int        `json:"pending"`
}

func (r *Reconciler) Status(ctx context.Context) (Status, error) {
	st := Status{
		InProgress:    r.inProgress.Load(),
		Authenticated: r.auth.IsAuthenticated(),
	}
	last, ok, err := r.local.LastSync(ctx)
	if err != nil {
		return st, err
	}
	if ok {
		st.LastSync = &last
	}
	pending, err := r.local.Query(ctx, domain.Filter{SyncStatus: domain.StatusPending})
	if err != nil {
		return st, err
	}
	st.Pending = len(pending)
	return st, nil
}
