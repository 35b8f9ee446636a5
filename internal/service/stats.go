package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/localstore"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/reconcile"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
)

const recentEntries = 10

type LocalStats struct {
	Total     int                 `json:"total"`
	Pending   int                 `json:"pending"`
	LocalOnly int                 `json:"localOnly"`
	ByUnit    map[domain.Unit]int `json:"byUnit"`
}

type RemoteStats struct {
	Total         int                        `json:"total"`
	ByUnit        map[domain.Unit]int        `json:"byUnit"`
	RecentEntries []domain.MeasurementRecord `json:"recentEntries"`
}

// Stats summarises both stores. Remote is nil when nobody is signed in.
type Stats struct {
	Local    LocalStats   `json:"local"`
	Remote   *RemoteStats `json:"remote,omitempty"`
	LastSync *time.Time   `json:"lastSync,omitempty"`
}

type StatsService struct {
	local  *localstore.Store
	remote remote.Transport
	auth   auth.Provider
}

func (s *StatsService) Stats(ctx context.Context) (*Stats, error) {
	records, err := s.local.Query(ctx, domain.Filter{})
	if err != nil {
		return nil, err
	}
	st := &Stats{Local: LocalStats{Total: len(records), ByUnit: unitCounts(records)}}
	for _, r := range records {
		switch r.SyncStatus {
		case domain.StatusPending:
			st.Local.Pending++
		case domain.StatusLocalOnly:
			st.Local.LocalOnly++
		}
	}

	last, ok, err := s.local.LastSync(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		st.LastSync = &last
	}

	if s.remote == nil || !s.auth.IsAuthenticated() {
		return st, nil
	}
	st.Remote = &RemoteStats{ByUnit: unitCounts(nil), RecentEntries: []domain.MeasurementRecord{}}
	remoteRecords, err := s.remote.QueryRecords(ctx, domain.Filter{})
	if err != nil {
		log.Warn().Err(err).Msg("remote stats unavailable")
		return st, nil
	}
	st.Remote.Total = len(remoteRecords)
	st.Remote.ByUnit = unitCounts(remoteRecords)
	reconcile.SortNewestFirst(remoteRecords)
	if len(remoteRecords) > recentEntries {
		remoteRecords = remoteRecords[:recentEntries]
	}
	st.Remote.RecentEntries = remoteRecords
	return st, nil
}

func unitCounts(records []domain.MeasurementRecord) map[domain.Unit]int {
	out := map[domain.Unit]int{domain.UnitDRI1: 0, domain.UnitDRI2: 0}
	for _, r := range records {
		out[r.Unit]++
	}
	return out
}
