package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// AutoSync is the scheduled sync job. It runs only while the operator has
// auto sync enabled and someone is signed in.
func (s *Services) AutoSync(ctx context.Context) {
	st, err := s.Settings.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("auto sync: settings unavailable")
		return
	}
	if !st.AutoSync {
		return
	}
	if status, err := s.Sync.Status(ctx); err == nil && !status.Authenticated {
		log.Debug().Msg("auto sync: nobody signed in")
		return
	}

	res, err := s.Sync.SyncToServer(ctx)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		log.Debug().Msg("auto sync: sync already running")
	case err != nil:
		log.Warn().Err(err).Msg("auto sync failed")
	default:
		log.Info().Int("synced", res.SyncedCount).Int("failed", len(res.Errors)).Msg("auto sync done")
	}
}
