package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/localstore"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

// SettingsService keeps settings locally and, for a signed-in user, mirrors
// them to the remote settings store when one is configured.
type SettingsService struct {
	local  *localstore.Store
	remote remote.SettingsStore
	auth   auth.Provider
}

// Get returns the signed-in user's remote settings when available, otherwise
// the local ones, or the defaults when none were saved.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	if u, ok := s.remoteUser(); ok {
		st, found, err := s.remote.UserSettings(ctx, u.ID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("user", u.ID).Msg("remote settings unavailable, using local")
		case found:
			if err := s.local.SaveSettings(ctx, st); err != nil {
				log.Warn().Err(err).Msg("remote settings not cached locally")
			}
			return st, nil
		}
	}
	return s.local.Settings(ctx)
}

func (s *SettingsService) Save(ctx context.Context, st domain.Settings) error {
	if err := validation.Settings(st); err != nil {
		return err
	}
	if err := s.local.SaveSettings(ctx, st); err != nil {
		return err
	}
	if u, ok := s.remoteUser(); ok {
		if err := s.remote.SaveUserSettings(ctx, u.ID, st); err != nil {
			log.Warn().Err(err).Str("user", u.ID).Msg("settings saved locally only")
		}
	}
	return nil
}

func (s *SettingsService) remoteUser() (auth.User, bool) {
	if s.remote == nil || s.auth == nil {
		return auth.User{}, false
	}
	return s.auth.CurrentUser()
}
