package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// PostgresStore is the remote record store on a hosted Postgres database.
type PostgresStore struct {
	db        *sqlx.DB
	publisher Publisher
}

var _ Transport = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB, publisher Publisher) *PostgresStore {
	return &PostgresStore{db: db, publisher: publisher}
}

type pgRecord struct {
	UnitType        string       `db:"unit_type"`
	EquipmentID     string       `db:"equipment_id"`
	MeasurementDate string       `db:"measurement_date"`
	Parameters      []byte       `db:"parameters"`
	Notes           string       `db:"notes"`
	UserID          string       `db:"user_id"`
	UserName        string       `db:"user_name"`
	LocalTimestamp  sql.NullTime `db:"local_timestamp"`
	ServerTimestamp time.Time    `db:"server_timestamp"`
	Inserted        sql.NullBool `db:"inserted"`
}

func (p pgRecord) record() (domain.MeasurementRecord, error) {
	r := domain.MeasurementRecord{
		Unit:      domain.Unit(p.UnitType),
		Equipment: p.EquipmentID,
		Date:      p.MeasurementDate,
		Notes:     p.Notes,
		UserID:    p.UserID,
		UserName:  p.UserName,
		Timestamp: p.ServerTimestamp,
	}
	if p.LocalTimestamp.Valid {
		r.Timestamp = p.LocalTimestamp.Time
	}
	st := p.ServerTimestamp
	r.ServerTimestamp = &st
	if err := json.Unmarshal(p.Parameters, &r.Parameters); err != nil {
		return r, fmt.Errorf("decode parameters: %w", err)
	}
	remoteOnly(&r)
	return r, nil
}

const upsertRecord = `
INSERT INTO vibrate_data
	(unit_type, equipment_id, measurement_date, parameters, notes, user_id, user_name, local_timestamp, server_timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (unit_type, equipment_id, measurement_date) DO UPDATE SET
	parameters = EXCLUDED.parameters,
	notes = EXCLUDED.notes,
	user_id = EXCLUDED.user_id,
	user_name = EXCLUDED.user_name,
	local_timestamp = EXCLUDED.local_timestamp,
	server_timestamp = now()
RETURNING unit_type, equipment_id, measurement_date::text AS measurement_date, parameters, notes,
	user_id, user_name, local_timestamp, server_timestamp, (xmax = 0) AS inserted`

// SubmitBatch upserts every record in one transaction. A record the database
// rejects is rolled back to its savepoint and reported without failing the rest.
func (s *PostgresStore) SubmitBatch(ctx context.Context, records []domain.MeasurementRecord) (BatchResult, error) {
	var res BatchResult
	if len(records) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, mapPostgresError("submit batch", err)
	}
	defer tx.Rollback()

	var events []domain.ChangeEvent
	for _, r := range records {
		params, err := json.Marshal(r.Parameters)
		if err != nil {
			res.Errors = append(res.Errors, BatchError{ID: r.Key(), Message: err.Error()})
			continue
		}
		if _, err := tx.ExecContext(ctx, `SAVEPOINT record`); err != nil {
			return BatchResult{}, mapPostgresError("submit batch", err)
		}

		var row pgRecord
		err = tx.QueryRowxContext(ctx, upsertRecord,
			string(r.Unit), r.Equipment, r.Date, params, r.Notes, r.UserID, r.UserName, r.Timestamp,
		).StructScan(&row)
		if err != nil {
			if isNetwork(err) {
				return BatchResult{}, mapPostgresError("submit batch", err)
			}
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT record`); rbErr != nil {
				return BatchResult{}, mapPostgresError("submit batch", rbErr)
			}
			res.Errors = append(res.Errors, BatchError{ID: r.Key(), Message: mapPostgresError("upsert", err).Error()})
			continue
		}
		if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT record`); err != nil {
			return BatchResult{}, mapPostgresError("submit batch", err)
		}
		res.SuccessCount++

		saved, err := row.record()
		if err != nil {
			continue
		}
		ev := domain.ChangeEvent{EventType: domain.ChangeUpdate, Record: saved}
		if row.Inserted.Bool {
			ev.EventType = domain.ChangeInsert
			res.Inserted = append(res.Inserted, saved.ID)
		}
		events = append(events, ev)
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, mapPostgresError("submit batch", err)
	}

	for _, ev := range events {
		publish(ctx, s.publisher, ev)
	}
	return res, nil
}

// QueryRecords returns matching rows ordered newest first.
func (s *PostgresStore) QueryRecords(ctx context.Context, f domain.Filter) ([]domain.MeasurementRecord, error) {
	if f.SyncStatus != "" && f.SyncStatus != domain.StatusSynced {
		return nil, nil
	}
	query, args := buildRemoteQuery(f)

	var rows []pgRecord
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapPostgresError("query records", err)
	}
	out := make([]domain.MeasurementRecord, 0, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			log.Warn().Err(err).Str("component", "remote").Str("id", domain.RecordID(domain.Unit(row.UnitType), row.EquipmentID, row.MeasurementDate)).Msg("skipping undecodable remote row")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func buildRemoteQuery(f domain.Filter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.Unit != "" {
		add("unit_type = $%d", string(f.Unit))
	}
	if f.Equipment != "" {
		add("equipment_id = $%d", f.Equipment)
	}
	if f.Date != "" {
		add("measurement_date = $%d", f.Date)
	}
	if f.DateFrom != "" {
		add("measurement_date >= $%d", f.DateFrom)
	}
	if f.DateTo != "" {
		add("measurement_date <= $%d", f.DateTo)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}

	query := `SELECT unit_type, equipment_id, measurement_date::text AS measurement_date, parameters, notes,
	user_id, user_name, local_timestamp, server_timestamp FROM vibrate_data`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY measurement_date DESC, server_timestamp DESC"
	return query, args
}

// DeleteRecord is idempotent; deleting a row that is gone or owned by
// someone else succeeds without effect.
func (s *PostgresStore) DeleteRecord(ctx context.Context, unit domain.Unit, equipment, date, ownerUserID string) error {
	var rows []pgRecord
	err := s.db.SelectContext(ctx, &rows, `
		DELETE FROM vibrate_data
		WHERE unit_type = $1 AND equipment_id = $2 AND measurement_date = $3 AND user_id = $4
		RETURNING unit_type, equipment_id, measurement_date::text AS measurement_date, parameters, notes,
			user_id, user_name, local_timestamp, server_timestamp`,
		string(unit), equipment, date, ownerUserID)
	if err != nil {
		return mapPostgresError("delete record", err)
	}
	for _, row := range rows {
		if r, err := row.record(); err == nil {
			publish(ctx, s.publisher, domain.ChangeEvent{EventType: domain.ChangeDelete, Record: r})
		}
	}
	return nil
}
