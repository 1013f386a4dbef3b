package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"firewatch/internal/model"
	"firewatch/internal/repository"
)

// CameraRepository implements repository.CameraRepository for SQLite.
type CameraRepository struct {
	db *DB
}

func NewCameraRepository(db *DB) *CameraRepository {
	return &CameraRepository{db: db}
}

// Upsert inserts the camera or replaces the row with the same id.
func (r *CameraRepository) Upsert(ctx context.Context, cam *model.Camera) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO cameras (id, kind, name, locator, lat, lon, owner, contact, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			locator = excluded.locator,
			lat = excluded.lat,
			lon = excluded.lon,
			owner = excluded.owner,
			contact = excluded.contact
	`, cam.ID, string(cam.Kind), cam.Name, cam.Locator, cam.Location.Lat, cam.Location.Lon, cam.Owner, cam.Contact, cam.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert camera: %w", err)
	}
	return nil
}

// FindOne retrieves a camera by its id.
func (r *CameraRepository) FindOne(ctx context.Context, id string) (*model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, kind, name, locator, lat, lon, owner, contact, created_at
		FROM cameras WHERE id = ?
	`, id)

	cam, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return cam, nil
}

// Find retrieves cameras matching the filter, ordered by id.
func (r *CameraRepository) Find(ctx context.Context, filter model.CameraFilter) ([]model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, kind, name, locator, lat, lon, owner, contact, created_at
		FROM cameras
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if filter.Owner != "" {
		query += " AND owner = ?"
		args = append(args, filter.Owner)
	}
	if filter.Locator != "" {
		query += " AND locator = ?"
		args = append(args, filter.Locator)
	}
	query += " ORDER BY id"

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []model.Camera
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, *cam)
	}
	return cameras, rows.Err()
}

// Delete removes a camera by its id.
func (r *CameraRepository) Delete(ctx context.Context, id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM cameras WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete camera: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCamera(s scanner) (*model.Camera, error) {
	var cam model.Camera
	var kind string
	if err := s.Scan(&cam.ID, &kind, &cam.Name, &cam.Locator, &cam.Location.Lat, &cam.Location.Lon,
		&cam.Owner, &cam.Contact, &cam.CreatedAt); err != nil {
		return nil, err
	}
	cam.Kind = model.CameraKind(kind)
	return &cam, nil
}
