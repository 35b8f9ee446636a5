package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/localstore"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/reconcile"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/remote"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type fakeRemote struct {
	mu          sync.Mutex
	records     map[string]domain.MeasurementRecord
	deleted     []string
	queryErr    error
	settings    map[string]domain.Settings
	settingsErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records:  map[string]domain.MeasurementRecord{},
		settings: map[string]domain.Settings{},
	}
}

func (f *fakeRemote) SubmitBatch(_ context.Context, records []domain.MeasurementRecord) (remote.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		r.SyncStatus = domain.StatusSynced
		ts := now
		r.ServerTimestamp = &ts
		f.records[r.ID] = r
	}
	return remote.BatchResult{SuccessCount: len(records)}, nil
}

func (f *fakeRemote) QueryRecords(_ context.Context, filter domain.Filter) ([]domain.MeasurementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []domain.MeasurementRecord
	for _, r := range f.records {
		if filter.Match(&r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (f *fakeRemote) DeleteRecord(_ context.Context, unit domain.Unit, equipment, date, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := domain.RecordID(unit, equipment, date)
	f.deleted = append(f.deleted, id+"@"+owner)
	delete(f.records, id)
	return nil
}

func (f *fakeRemote) UserSettings(_ context.Context, userID string) (domain.Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingsErr != nil {
		return domain.Settings{}, false, f.settingsErr
	}
	st, ok := f.settings[userID]
	return st, ok, nil
}

func (f *fakeRemote) SaveUserSettings(_ context.Context, userID string, st domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingsErr != nil {
		return f.settingsErr
	}
	f.settings[userID] = st
	return nil
}

type fakeUploader struct {
	key  string
	data []byte
}

func (f *fakeUploader) UploadReport(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.key, f.data = key, data
	return "https://reports.example/" + key, nil
}

type fakeNotifier struct {
	alerts []domain.AnalysisAlert
}

func (f *fakeNotifier) SendCriticalAlerts(_ context.Context, _ domain.Unit, alerts []domain.AnalysisAlert) error {
	f.alerts = append(f.alerts, alerts...)
	return nil
}

type fixture struct {
	svcs     *Services
	local    *localstore.Store
	remote   *fakeRemote
	session  *auth.Session
	uploader *fakeUploader
	notifier *fakeNotifier
}

func setup(t *testing.T, syncOnSave bool) *fixture {
	t.Helper()
	local, err := localstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	f := &fixture{
		local:    local,
		remote:   newFakeRemote(),
		session:  auth.NewSession(),
		uploader: &fakeUploader{},
		notifier: &fakeNotifier{},
	}
	clock := func() time.Time { return now }
	f.svcs = New(Deps{
		Local:          local,
		Remote:         f.remote,
		RemoteSettings: f.remote,
		Auth:           f.session,
		Reconciler:     reconcile.New(local, f.remote, f.session, reconcile.WithClock(clock)),
		Reports:        f.uploader,
		Notifier:       f.notifier,
		SyncOnSave:     syncOnSave,
		Now:            clock,
	})
	return f
}

func entry(date string, v1 float64) Entry {
	return Entry{
		Unit:       domain.UnitDRI1,
		Equipment:  "GB-cp48A",
		Date:       date,
		Parameters: map[string]float64{"V1": v1},
		Notes:      "  routine  ",
	}
}

func TestSaveSignedIn(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	f.session.SignIn(auth.User{ID: "u1", Email: "op@plant.example"})

	rec, err := f.svcs.Records.Save(ctx, entry("2026-10-19", 3.5))
	require.NoError(t, err)
	assert.Equal(t, "DRI1_GB-cp48A_2026-10-19", rec.ID)
	assert.Equal(t, domain.StatusPending, rec.SyncStatus)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "op@plant.example", rec.UserName)
	assert.Equal(t, "routine", rec.Notes)
	assert.True(t, rec.Timestamp.Equal(now))

	stored, err := f.local.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.5, stored.Parameters["V1"])
}

func TestSaveSignedOutStaysLocal(t *testing.T) {
	ctx := context.Background()
	f := setup(t, true)

	rec, err := f.svcs.Records.Save(ctx, entry("2026-10-19", 3.5))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLocalOnly, rec.SyncStatus)
	assert.Equal(t, "unknown", rec.UserName)
	assert.Empty(t, f.remote.records)
}

func TestSaveRejectsInvalidEntry(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)

	_, err := f.svcs.Records.Save(ctx, Entry{Unit: "DRI9", Date: "2026-10-20", Parameters: map[string]float64{"V1": 20.005}})
	var errs validation.Errors
	require.True(t, errors.As(err, &errs))
	assert.True(t, errs.Has("unit", validation.CodeInvalid))
	assert.True(t, errs.Has("equipment", validation.CodeRequired))
	assert.True(t, errs.Has("date", validation.CodeFutureDate))
	assert.True(t, errs.Has("parameters.V1", validation.CodeDecimalPlaces))

	all, err := f.local.Query(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSaveSyncsWhenEnabled(t *testing.T) {
	ctx := context.Background()
	f := setup(t, true)
	f.session.SignIn(auth.User{ID: "u1", Name: "operator"})

	rec, err := f.svcs.Records.Save(ctx, entry("2026-10-19", 3.5))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSynced, rec.SyncStatus)
	assert.Contains(t, f.remote.records, rec.ID)
}

func TestSaveSyncsWhenSettingEnabled(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	f.session.SignIn(auth.User{ID: "u1", Name: "operator"})
	st := domain.DefaultSettings()
	st.SyncOnDataEntry = true
	require.NoError(t, f.svcs.Settings.Save(ctx, st))

	rec, err := f.svcs.Records.Save(ctx, entry("2026-10-19", 3.5))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSynced, rec.SyncStatus)
}

func TestDeleteSyncedRecordAlsoDeletesRemote(t *testing.T) {
	ctx := context.Background()
	f := setup(t, true)
	f.session.SignIn(auth.User{ID: "u1", Name: "operator"})
	rec, err := f.svcs.Records.Save(ctx, entry("2026-10-19", 3.5))
	require.NoError(t, err)

	require.NoError(t, f.svcs.Records.Delete(ctx, rec.ID))
	assert.Equal(t, []string{rec.ID + "@u1"}, f.remote.deleted)
	_, err = f.local.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletePendingRecordStaysLocal(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	f.session.SignIn(auth.User{ID: "u1", Name: "operator"})
	rec, err := f.svcs.Records.Save(ctx, entry("2026-10-19", 3.5))
	require.NoError(t, err)

	require.NoError(t, f.svcs.Records.Delete(ctx, rec.ID))
	assert.Empty(t, f.remote.deleted)
	require.NoError(t, f.svcs.Records.Delete(ctx, rec.ID))
}

func TestDeleteMalformedID(t *testing.T) {
	f := setup(t, false)
	err := f.svcs.Records.Delete(context.Background(), "nonsense")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClearLocal(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	_, err := f.svcs.Records.Save(ctx, entry("2026-10-19", 3.5))
	require.NoError(t, err)
	st := domain.DefaultSettings()
	st.AnalysisThreshold = 50
	require.NoError(t, f.svcs.Settings.Save(ctx, st))

	require.NoError(t, f.svcs.Records.ClearLocal(ctx))
	all, err := f.local.Query(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	got, err := f.svcs.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

func TestSettingsValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)

	err := f.svcs.Settings.Save(ctx, domain.Settings{AnalysisThreshold: 150, AnalysisTimeRange: 7, AnalysisComparisonDays: 1})
	var errs validation.Errors
	require.True(t, errors.As(err, &errs))
	assert.True(t, errs.Has("analysisThreshold", validation.CodeOutOfRange))

	got, err := f.svcs.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

func TestSettingsSignedOutStayLocal(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)

	st := domain.Settings{AnalysisThreshold: 40, AnalysisTimeRange: 14, AnalysisComparisonDays: 7}
	require.NoError(t, f.svcs.Settings.Save(ctx, st))
	assert.Empty(t, f.remote.settings)

	got, err := f.svcs.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestSettingsFollowUser(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	f.session.SignIn(auth.User{ID: "u1", Name: "Ana"})

	st := domain.Settings{AnalysisThreshold: 40, AnalysisTimeRange: 14, AnalysisComparisonDays: 7, AutoSync: true}
	require.NoError(t, f.svcs.Settings.Save(ctx, st))
	assert.Equal(t, st, f.remote.settings["u1"])

	// saved from another device
	other := domain.Settings{AnalysisThreshold: 25, AnalysisTimeRange: 30, AnalysisComparisonDays: 30}
	f.remote.settings["u1"] = other

	got, err := f.svcs.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, other, got)

	cached, err := f.local.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, other, cached)
}

func TestSettingsFallBackToLocalWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	f.session.SignIn(auth.User{ID: "u1", Name: "Ana"})
	f.remote.settingsErr = errors.New("unreachable")

	st := domain.Settings{AnalysisThreshold: 40, AnalysisTimeRange: 14, AnalysisComparisonDays: 7}
	require.NoError(t, f.svcs.Settings.Save(ctx, st))

	got, err := f.svcs.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	_, err := f.svcs.Records.Save(ctx, entry("2026-10-17", 1))
	require.NoError(t, err)

	st, err := f.svcs.Stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Local.Total)
	assert.Equal(t, 1, st.Local.LocalOnly)
	assert.Equal(t, 1, st.Local.ByUnit[domain.UnitDRI1])
	assert.Nil(t, st.Remote)
	assert.Nil(t, st.LastSync)

	f.session.SignIn(auth.User{ID: "u1", Name: "operator"})
	_, err = f.svcs.Records.Save(ctx, entry("2026-10-18", 2))
	require.NoError(t, err)
	_, err = f.svcs.Sync.SyncToServer(ctx)
	require.NoError(t, err)

	st, err = f.svcs.Stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Local.Total)
	assert.Equal(t, 0, st.Local.Pending)
	require.NotNil(t, st.Remote)
	assert.Equal(t, 1, st.Remote.Total)
	assert.Equal(t, 0, st.Remote.ByUnit[domain.UnitDRI2])
	require.Len(t, st.Remote.RecentEntries, 1)
	require.NotNil(t, st.LastSync)

	f.remote.queryErr = &domain.RemoteError{Kind: domain.KindNetworkUnreachable, Op: "query"}
	st, err = f.svcs.Stats.Stats(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Remote)
	assert.Equal(t, 0, st.Remote.Total)
}

func TestAnalysisRunAndExport(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	for i, v := range []float64{4, 4, 4, 4, 10} {
		e := entry(now.AddDate(0, 0, i-4).Format(domain.DateLayout), v)
		_, err := f.svcs.Records.Save(ctx, e)
		require.NoError(t, err)
	}
	// outside the default seven day window
	_, err := f.svcs.Records.Save(ctx, entry("2026-10-01", 1))
	require.NoError(t, err)

	res, err := f.svcs.Analysis.Run(ctx, domain.UnitDRI1, 0)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-12", res.DateFrom)
	assert.Equal(t, "2026-10-19", res.DateTo)
	assert.Equal(t, 5, res.RecordCount)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, domain.SeverityCritical, res.Alerts[0].Severity)
	assert.Equal(t, 150.0, res.Alerts[0].IncreasePercent)

	res, url, err := f.svcs.Analysis.Export(ctx, domain.UnitDRI1, 30)
	require.NoError(t, err)
	assert.Equal(t, 6, res.RecordCount)
	assert.Equal(t, "https://reports.example/"+f.uploader.key, url)
	assert.Contains(t, string(f.uploader.data), `"alerts"`)
	require.Len(t, f.notifier.alerts, 1)
}

func TestAnalysisRejectsBadInput(t *testing.T) {
	f := setup(t, false)
	_, err := f.svcs.Analysis.Run(context.Background(), "DRI3", 0)
	assert.Error(t, err)
	_, err = f.svcs.Analysis.Run(context.Background(), domain.UnitDRI1, 400)
	assert.Error(t, err)
}

func TestFromMQTT(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)

	payload := []byte(`{"unitType":"DRI2","equipmentId":"GB-cp48A","parameters":{"V1":"4.5","GA1":0.25}}`)
	rec, err := f.svcs.Records.FromMQTT(ctx, "vibrate/entries", payload)
	require.NoError(t, err)
	assert.Equal(t, "DRI2_GB-cp48A_2026-10-19", rec.ID)
	assert.Equal(t, 4.5, rec.Parameters["V1"])
	assert.Equal(t, 0.25, rec.Parameters["GA1"])

	_, err = f.svcs.Records.FromMQTT(ctx, "vibrate/entries", []byte(`{"parameters":{"V1":"loud"}}`))
	assert.Error(t, err)
	_, err = f.svcs.Records.FromMQTT(ctx, "vibrate/entries", []byte(`not json`))
	assert.Error(t, err)
}

func TestAutoSync(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	f.session.SignIn(auth.User{ID: "u1", Name: "operator"})
	_, err := f.svcs.Records.Save(ctx, entry("2026-10-19", 3.5))
	require.NoError(t, err)

	f.svcs.AutoSync(ctx)
	assert.Empty(t, f.remote.records)

	st := domain.DefaultSettings()
	st.AutoSync = true
	require.NoError(t, f.svcs.Settings.Save(ctx, st))
	f.svcs.AutoSync(ctx)
	assert.Len(t, f.remote.records, 1)
}
