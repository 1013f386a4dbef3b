package repository

import (
	"context"
	"errors"

	"firewatch/internal/model"
)

// ErrNotFound is returned by FindOne when no document has the given id.
var ErrNotFound = errors.New("not found")

// CameraRepository stores registered cameras, keyed by camera id.
type CameraRepository interface {
	Upsert(ctx context.Context, cam *model.Camera) error
	FindOne(ctx context.Context, id string) (*model.Camera, error)
	Find(ctx context.Context, filter model.CameraFilter) ([]model.Camera, error)
	Delete(ctx context.Context, id string) error
}

// StatusRepository stores one CameraStatus per camera id.
type StatusRepository interface {
	Upsert(ctx context.Context, status *model.CameraStatus) error
	FindOne(ctx context.Context, cameraID string) (*model.CameraStatus, error)
	Find(ctx context.Context, filter model.StatusFilter) ([]model.CameraStatus, error)
	Delete(ctx context.Context, cameraID string) error
}

// EventRepository appends detection history.
type EventRepository interface {
	Insert(ctx context.Context, ev model.DetectionEvent) error
}

// Store bundles the repositories of one backend.
type Store struct {
	Cameras  CameraRepository
	Statuses StatusRepository
	Close    func() error
}
