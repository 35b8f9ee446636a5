// Package localstore is the embedded, durable record store. It owns local
// persistence and works with or without connectivity.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

const (
	settingsKey = "user_settings"
	lastSyncKey = "last_sync"
)

const schema = `
CREATE TABLE IF NOT EXISTS vibrate_data (
	id               TEXT PRIMARY KEY,
	unit             TEXT NOT NULL,
	equipment        TEXT NOT NULL,
	date             TEXT NOT NULL,
	parameters       TEXT NOT NULL,
	notes            TEXT NOT NULL DEFAULT '',
	user_id          TEXT NOT NULL DEFAULT '',
	user_name        TEXT NOT NULL DEFAULT '',
	timestamp        TEXT NOT NULL,
	server_timestamp TEXT,
	sync_status      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vibrate_unit ON vibrate_data(unit);
CREATE INDEX IF NOT EXISTS idx_vibrate_equipment ON vibrate_data(equipment);
CREATE INDEX IF NOT EXISTS idx_vibrate_date ON vibrate_data(date);
CREATE INDEX IF NOT EXISTS idx_vibrate_sync_status ON vibrate_data(sync_status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_vibrate_unit_equipment_date ON vibrate_data(unit, equipment, date);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store persists measurement records in SQLite.
type Store struct {
	db *sqlx.DB
}

// SyncMark identifies a record version the remote store acknowledged.
type SyncMark struct {
	ID        string
	Timestamp time.Time
}

type row struct {
	ID              string         `db:"id"`
	Unit            string         `db:"unit"`
	Equipment       string         `db:"equipment"`
	Date            string         `db:"date"`
	Parameters      string         `db:"parameters"`
	Notes           string         `db:"notes"`
	UserID          string         `db:"user_id"`
	UserName        string         `db:"user_name"`
	Timestamp       string         `db:"timestamp"`
	ServerTimestamp sql.NullString `db:"server_timestamp"`
	SyncStatus      string         `db:"sync_status"`
}

// Open opens (creating if needed) the store at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	// single writer; also keeps a :memory: database on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "migrate", Err: err}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts r under its derived key; a newer write to the same
// (unit, equipment, date) replaces the old one.
func (s *Store) Put(ctx context.Context, r domain.MeasurementRecord) error {
	if r.SyncStatus == domain.StatusSynced {
		return domain.ErrSyncedStatus
	}
	if !r.SyncStatus.Valid() {
		return &domain.StorageError{Op: "put", Err: fmt.Errorf("invalid sync status %q", r.SyncStatus)}
	}
	r.ID = r.Key()
	rw, err := toRow(r)
	if err != nil {
		return &domain.StorageError{Op: "put", Err: err}
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO vibrate_data
			(id, unit, equipment, date, parameters, notes, user_id, user_name, timestamp, server_timestamp, sync_status)
		VALUES
			(:id, :unit, :equipment, :date, :parameters, :notes, :user_id, :user_name, :timestamp, :server_timestamp, :sync_status)
		ON CONFLICT(id) DO UPDATE SET
			parameters = excluded.parameters,
			notes = excluded.notes,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			timestamp = excluded.timestamp,
			server_timestamp = excluded.server_timestamp,
			sync_status = excluded.sync_status`, rw)
	if err != nil {
		return &domain.StorageError{Op: "put", Err: err}
	}
	return nil
}

// Get returns the record stored under id or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*domain.MeasurementRecord, error) {
	var rw row
	err := s.db.GetContext(ctx, &rw, `SELECT * FROM vibrate_data WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get", Err: err}
	}
	r, err := rw.record()
	if err != nil {
		return nil, &domain.StorageError{Op: "get", Err: err}
	}
	return &r, nil
}

// Query returns every record matching f, in no particular order.
func (s *Store) Query(ctx context.Context, f domain.Filter) ([]domain.MeasurementRecord, error) {
	var conditions []string
	var args []interface{}

	if f.Unit != "" {
		conditions = append(conditions, "unit = ?")
		args = append(args, string(f.Unit))
	}
	if f.Equipment != "" {
		conditions = append(conditions, "equipment = ?")
		args = append(args, f.Equipment)
	}
	if f.Date != "" {
		conditions = append(conditions, "date = ?")
		args = append(args, f.Date)
	}
	if f.DateFrom != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, f.DateTo)
	}
	if f.SyncStatus != "" {
		conditions = append(conditions, "sync_status = ?")
		args = append(args, string(f.SyncStatus))
	}
	if f.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, f.UserID)
	}

	query := `SELECT * FROM vibrate_data`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, &domain.StorageError{Op: "query", Err: err}
	}
	out := make([]domain.MeasurementRecord, 0, len(rows))
	for _, rw := range rows {
		r, err := rw.record()
		if err != nil {
			return nil, &domain.StorageError{Op: "query", Err: err}
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete removes id. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vibrate_data WHERE id = ?`, id); err != nil {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// MarkSynced flips the acknowledged records to synced in one transaction.
// A record rewritten locally after it was read keeps its newer content and
// status. It returns how many records were marked.
func (s *Store) MarkSynced(ctx context.Context, marks []SyncMark, at time.Time) (int, error) {
	if len(marks) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, &domain.StorageError{Op: "mark synced", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		UPDATE vibrate_data SET sync_status = ?, server_timestamp = ?
		WHERE id = ? AND timestamp = ? AND sync_status = ?`)
	if err != nil {
		return 0, &domain.StorageError{Op: "mark synced", Err: err}
	}
	defer stmt.Close()

	stamp := formatTime(at)
	var count int
	for _, m := range marks {
		res, err := stmt.ExecContext(ctx, string(domain.StatusSynced), stamp, m.ID, formatTime(m.Timestamp), string(domain.StatusPending))
		if err != nil {
			return 0, &domain.StorageError{Op: "mark synced", Err: err}
		}
		n, _ := res.RowsAffected()
		count += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, &domain.StorageError{Op: "mark synced", Err: err}
	}
	return count, nil
}

// LastSync returns the completion time of the last successful sync.
func (s *Store) LastSync(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.getSetting(ctx, lastSyncKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, &domain.StorageError{Op: "last sync", Err: err}
	}
	return t, true, nil
}

func (s *Store) SetLastSync(ctx context.Context, t time.Time) error {
	return s.setSetting(ctx, lastSyncKey, formatTime(t))
}

// Settings returns the stored preferences, or the defaults when none were saved.
func (s *Store) Settings(ctx context.Context) (domain.Settings, error) {
	out := domain.DefaultSettings()
	raw, ok, err := s.getSetting(ctx, settingsKey)
	if err != nil || !ok {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.DefaultSettings(), &domain.StorageError{Op: "settings", Err: err}
	}
	return out, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	b, err := json.Marshal(settings)
	if err != nil {
		return &domain.StorageError{Op: "save settings", Err: err}
	}
	return s.setSetting(ctx, settingsKey, string(b))
}

// Clear wipes all records, settings and the last sync time.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &domain.StorageError{Op: "clear", Err: err}
	}
	defer tx.Rollback()
	for _, q := range []string{`DELETE FROM vibrate_data`, `DELETE FROM settings`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return &domain.StorageError{Op: "clear", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Op: "clear", Err: err}
	}
	return nil
}

func (s *Store) getSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.GetContext(ctx, &v, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.StorageError{Op: "read setting", Err: err}
	}
	return v, true, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return &domain.StorageError{Op: "write setting", Err: err}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toRow(r domain.MeasurementRecord) (row, error) {
	params := r.Parameters
	if params == nil {
		params = map[string]float64{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return row{}, err
	}
	rw := row{
		ID:         r.ID,
		Unit:       string(r.Unit),
		Equipment:  r.Equipment,
		Date:       r.Date,
		Parameters: string(b),
		Notes:      r.Notes,
		UserID:     r.UserID,
		UserName:   r.UserName,
		Timestamp:  formatTime(r.Timestamp),
		SyncStatus: string(r.SyncStatus),
	}
	if r.ServerTimestamp != nil {
		rw.ServerTimestamp = sql.NullString{String: formatTime(*r.ServerTimestamp), Valid: true}
	}
	return rw, nil
}

func (rw row) record() (domain.MeasurementRecord, error) {
	r := domain.MeasurementRecord{
		ID:         rw.ID,
		Unit:       domain.Unit(rw.Unit),
		Equipment:  rw.Equipment,
		Date:       rw.Date,
		Notes:      rw.Notes,
		UserID:     rw.UserID,
		UserName:   rw.UserName,
		SyncStatus: domain.SyncStatus(rw.SyncStatus),
	}
	if err := json.Unmarshal([]byte(rw.Parameters), &r.Parameters); err != nil {
		return r, fmt.Errorf("decode parameters of %s: %w", rw.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, rw.Timestamp)
	if err != nil {
		return r, fmt.Errorf("decode timestamp of %s: %w", rw.ID, err)
	}
	r.Timestamp = ts
	if rw.ServerTimestamp.Valid {
		st, err := time.Parse(time.RFC3339Nano, rw.ServerTimestamp.String)
		if err != nil {
			return r, fmt.Errorf("decode server timestamp of %s: %w", rw.ID, err)
		}
		r.ServerTimestamp = &st
	}
	return r, nil
}
