package service

import (
	"context"
	"time"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/localstore"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/reconcile"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
)

// ReportUploader stores an exported report and returns a link to it.
type ReportUploader interface {
	UploadReport(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// AlertNotifier forwards critical analysis alerts to operators.
type AlertNotifier interface {
	SendCriticalAlerts(ctx context.Context, unit domain.Unit, alerts []domain.AnalysisAlert) error
}

// Deps are the collaborators the services are built from. Remote,
// RemoteSettings, Reports and Notifier are optional.
type Deps struct {
	Local          *localstore.Store
	Remote         remote.Transport
	RemoteSettings remote.SettingsStore
	Auth           auth.Provider
	Reconciler     *reconcile.Reconciler
	Reports        ReportUploader
	Notifier       AlertNotifier
	SyncOnSave     bool
	Now            func() time.Time
}

type Services struct {
	Records  *RecordService
	Settings *SettingsService
	Stats    *StatsService
	Analysis *AnalysisService
	Sync     *reconcile.Reconciler
}

func New(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}
	settings := &SettingsService{local: d.Local, remote: d.RemoteSettings, auth: d.Auth}
	return &Services{
		Records: &RecordService{
			local:      d.Local,
			remote:     d.Remote,
			auth:       d.Auth,
			sync:       d.Reconciler,
			settings:   settings,
			syncOnSave: d.SyncOnSave,
			now:        d.Now,
		},
		Settings: settings,
		Stats: &StatsService{
			local:  d.Local,
			remote: d.Remote,
			auth:   d.Auth,
		},
		Analysis: &AnalysisService{
			sync:     d.Reconciler,
			settings: settings,
			reports:  d.Reports,
			notifier: d.Notifier,
			now:      d.Now,
		},
		Sync: d.Reconciler,
	}
}
