package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"firewatch/internal/model"
	"firewatch/internal/repository"
)

// StatusRepository implements repository.StatusRepository for SQLite.
type StatusRepository struct {
	db *DB
}

func NewStatusRepository(db *DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// Upsert writes the status row of a camera.
func (r *StatusRepository) Upsert(ctx context.Context, s *model.CameraStatus) error {
	r.db.Lock()
	defer r.db.Unlock()

	var lastAlert sql.NullTime
	if s.LastAlertAt != nil {
		lastAlert = sql.NullTime{Time: *s.LastAlertAt, Valid: true}
	}
	var errText sql.NullString
	if s.Error != nil {
		errText = sql.NullString{String: *s.Error, Valid: true}
	}

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO camera_status (camera_id, last_checked, fire_detected, confidence, last_alert_at, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(camera_id) DO UPDATE SET
			last_checked = excluded.last_checked,
			fire_detected = excluded.fire_detected,
			confidence = excluded.confidence,
			last_alert_at = excluded.last_alert_at,
			error = excluded.error
	`, s.CameraID, s.LastChecked, s.FireDetected, s.Confidence, lastAlert, errText)
	if err != nil {
		return fmt.Errorf("failed to upsert status: %w", err)
	}
	return nil
}

// FindOne retrieves the status of a camera.
func (r *StatusRepository) FindOne(ctx context.Context, cameraID string) (*model.CameraStatus, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT camera_id, last_checked, fire_detected, confidence, last_alert_at, error
		FROM camera_status WHERE camera_id = ?
	`, cameraID)

	s, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return s, nil
}

// Find retrieves statuses matching the filter, ordered by camera id.
func (r *StatusRepository) Find(ctx context.Context, filter model.StatusFilter) ([]model.CameraStatus, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT camera_id, last_checked, fire_detected, confidence, last_alert_at, error
		FROM camera_status
		WHERE 1=1
	`
	args := []interface{}{}
	if filter.FireDetected != nil {
		query += " AND fire_detected = ?"
		args = append(args, *filter.FireDetected)
	}
	query += " ORDER BY camera_id"

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	defer rows.Close()

	var statuses []model.CameraStatus
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, *s)
	}
	return statuses, rows.Err()
}

// Delete removes the status of a camera.
func (r *StatusRepository) Delete(ctx context.Context, cameraID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM camera_status WHERE camera_id = ?`, cameraID); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	return nil
}

func scanStatus(s scanner) (*model.CameraStatus, error) {
	var st model.CameraStatus
	var lastAlert sql.NullTime
	var errText sql.NullString
	if err := s.Scan(&st.CameraID, &st.LastChecked, &st.FireDetected, &st.Confidence, &lastAlert, &errText); err != nil {
		return nil, err
	}
	if lastAlert.Valid {
		at := lastAlert.Time
		st.LastAlertAt = &at
	}
	if errText.Valid {
		msg := errText.String
		st.Error = &msg
	}
	return &st, nil
}
