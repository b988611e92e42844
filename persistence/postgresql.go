// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wfunc/quantumquest/models"
)

// MeasurementStore writes the measurement log with raw lib/pq. Batches go
// through COPY.
type MeasurementStore struct {
	db *sql.DB
}

// NewMeasurementStore opens and checks the connection and makes sure the
// table exists.
func NewMeasurementStore(dsn string) (*MeasurementStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &MeasurementStore{db: db}, nil
}

func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS quantum_measurements (
            id BIGSERIAL PRIMARY KEY,
            session_id TEXT,
            room_id TEXT,
            measurement_type TEXT,
            measurement_data JSONB,
            measured_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_quantum_measurements_session_id ON quantum_measurements(session_id);
        CREATE INDEX IF NOT EXISTS idx_quantum_measurements_room_id ON quantum_measurements(room_id);
    `)
	return err
}

// SaveBatch copies the batch in a single transaction.
func (s *MeasurementStore) SaveBatch(ctx context.Context, batch []models.QuantumMeasurement) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("quantum_measurements",
		"session_id", "room_id", "measurement_type", "measurement_data", "measured_at"))
	if err != nil {
		return err
	}

	for _, m := range batch {
		data, err := json.Marshal(m.MeasurementData)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("encode measurement %s: %w", m.MeasurementType, err)
		}
		if _, err := stmt.ExecContext(ctx, m.SessionID, m.RoomID, m.MeasurementType, string(data), m.MeasuredAt); err != nil {
			stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// Recent returns the newest measurements for a room.
func (s *MeasurementStore) Recent(ctx context.Context, roomID string, limit int) ([]models.QuantumMeasurement, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, session_id, room_id, measurement_type, measurement_data, measured_at
        FROM quantum_measurements
        WHERE room_id = $1
        ORDER BY measured_at DESC
        LIMIT $2`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QuantumMeasurement
	for rows.Next() {
		var (
			m       models.QuantumMeasurement
			session sql.NullString
			data    []byte
		)
		if err := rows.Scan(&m.ID, &session, &m.RoomID, &m.MeasurementType, &data, &m.MeasuredAt); err != nil {
			return nil, err
		}
		m.SessionID = session.String
		if len(data) > 0 {
			if err := json.Unmarshal(data, &m.MeasurementData); err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MeasurementStore) Close() error {
	return s.db.Close()
}
